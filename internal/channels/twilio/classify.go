package twilio

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/example/mailwatch/internal/models"
)

// Classify maps a request outcome to a dispatch failure reason. Provider
// error codes take precedence over the HTTP status; transport errors are
// split into timeouts and generic network failures.
func Classify(result *Result, err error) string {
	if result != nil {
		switch result.ErrorCode {
		case 21610, 21612, 21614, 21211:
			// unsubscribed, unreachable or malformed destination
			return models.ReasonRejected
		case 30001, 30002, 30003, 30005:
			// queue overflow and delivery congestion codes
			return models.ReasonRateLimited
		}
		switch {
		case result.HTTPStatus == http.StatusUnauthorized || result.HTTPStatus == http.StatusForbidden:
			return models.ReasonAuthRejected
		case result.HTTPStatus == http.StatusTooManyRequests:
			return models.ReasonRateLimited
		case result.HTTPStatus >= http.StatusInternalServerError:
			return models.ReasonRateLimited
		case result.HTTPStatus >= http.StatusBadRequest:
			return models.ReasonRejected
		}
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.ReasonTimeout
		}
		if strings.Contains(strings.ToLower(err.Error()), "timeout") {
			return models.ReasonTimeout
		}
		return models.ReasonNetwork
	}

	return models.ReasonUnknown
}
