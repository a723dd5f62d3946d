package dispatch_test

import (
	"testing"

	"github.com/example/mailwatch/internal/dispatch"
	"github.com/example/mailwatch/internal/models"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    dispatch.Policy
		wantErr bool
	}{
		{name: "empty selects default", raw: "", want: dispatch.PolicyAtLeastOne},
		{name: "at least one", raw: "at-least-one-success", want: dispatch.PolicyAtLeastOne},
		{name: "best effort", raw: "best-effort", want: dispatch.PolicyBestEffort},
		{name: "require all", raw: "require-all", want: dispatch.PolicyRequireAll},
		{name: "case and spacing tolerated", raw: "  Require-All ", want: dispatch.PolicyRequireAll},
		{name: "unknown rejected", raw: "sometimes", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := dispatch.ParsePolicy(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestPolicyHandled(t *testing.T) {
	sent := models.DispatchResult{Outcome: models.OutcomeSent}
	dedupedSent := models.DispatchResult{Outcome: models.OutcomeSent, Deduped: true}
	failed := models.DispatchResult{Outcome: models.OutcomeFailed, Reason: models.ReasonNetwork}
	skipped := models.DispatchResult{Outcome: models.OutcomeSkipped, Reason: models.ReasonMissingConfig}

	tests := []struct {
		name    string
		policy  dispatch.Policy
		results []models.DispatchResult
		want    bool
	}{
		{name: "no results is never handled", policy: dispatch.PolicyBestEffort, results: nil, want: false},
		{name: "one success suffices", policy: dispatch.PolicyAtLeastOne, results: []models.DispatchResult{failed, sent, skipped}, want: true},
		{name: "all failures is unhandled", policy: dispatch.PolicyAtLeastOne, results: []models.DispatchResult{failed, failed}, want: false},
		{name: "deduplicated delivery counts", policy: dispatch.PolicyAtLeastOne, results: []models.DispatchResult{failed, dedupedSent}, want: true},
		{name: "best effort ignores failures", policy: dispatch.PolicyBestEffort, results: []models.DispatchResult{failed, failed}, want: true},
		{name: "require all demands every success", policy: dispatch.PolicyRequireAll, results: []models.DispatchResult{sent, sent}, want: true},
		{name: "require all fails on one failure", policy: dispatch.PolicyRequireAll, results: []models.DispatchResult{sent, failed}, want: false},
		{name: "require all fails on a skip", policy: dispatch.PolicyRequireAll, results: []models.DispatchResult{sent, skipped}, want: false},
		{name: "require all accepts deduplicated", policy: dispatch.PolicyRequireAll, results: []models.DispatchResult{dedupedSent, sent}, want: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.Handled(tc.results); got != tc.want {
				t.Fatalf("expected handled=%v, got %v", tc.want, got)
			}
		})
	}
}
