package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/normalize"
)

// Config holds the connection settings for the IMAP mailbox.
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Mailbox            string
	UseTLS             bool
	InsecureSkipVerify bool
	MaxPerCycle        int
}

// IMAPClient implements Client against a real IMAP server. One TCP
// connection is opened per session and dropped when the session closes.
type IMAPClient struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// Option customises the IMAP client.
type Option func(*IMAPClient)

// WithClock overrides the clock used for fallback received timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *IMAPClient) {
		if now != nil {
			c.now = now
		}
	}
}

// NewIMAPClient validates the configuration and constructs a client.
func NewIMAPClient(cfg Config, logger zerolog.Logger, opts ...Option) (*IMAPClient, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("mailbox: host must be provided")
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("mailbox: username must be provided")
	}
	if strings.TrimSpace(cfg.Password) == "" {
		return nil, errors.New("mailbox: password must be provided")
	}
	if cfg.Port <= 0 {
		cfg.Port = 993
	}
	if strings.TrimSpace(cfg.Mailbox) == "" {
		cfg.Mailbox = "INBOX"
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	client := &IMAPClient{
		cfg:    cfg,
		logger: logger.With().Str("component", "mailbox").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Connect dials the server, authenticates and selects the configured
// mailbox. The returned session is valid for one poll cycle.
func (c *IMAPClient) Connect(ctx context.Context) (Session, error) {
	address := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	options := &imapclient.Options{}

	if c.cfg.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         c.cfg.Host,
			InsecureSkipVerify: c.cfg.InsecureSkipVerify,
		}
	}

	var (
		cli *imapclient.Client
		err error
	)
	if c.cfg.UseTLS {
		cli, err = imapclient.DialTLS(address, options)
	} else {
		cli, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, wrapNetwork(fmt.Errorf("dial %s: %v", address, err))
	}

	// ctx cancellation aborts a hung handshake
	stopClose := context.AfterFunc(ctx, func() {
		_ = cli.Close()
	})

	if err := cli.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		stopClose()
		_ = cli.Close()
		var respErr *imap.Error
		if errors.As(err, &respErr) {
			return nil, wrapAuth(fmt.Errorf("login %s: %v", c.cfg.Username, respErr))
		}
		return nil, wrapNetwork(fmt.Errorf("login %s: %v", c.cfg.Username, err))
	}

	if _, err := cli.Select(c.cfg.Mailbox, nil).Wait(); err != nil {
		stopClose()
		_ = cli.Close()
		return nil, wrapNetwork(fmt.Errorf("select %s: %v", c.cfg.Mailbox, err))
	}

	// established sessions outlive stop requests; the scheduler still marks
	// the in-flight message before closing
	stopClose()

	c.logger.Debug().
		Str("address", address).
		Str("mailbox", c.cfg.Mailbox).
		Bool("tls", c.cfg.UseTLS).
		Msg("mailbox session opened")

	return &imapSession{
		cli:    cli,
		cfg:    c.cfg,
		logger: c.logger,
		now:    c.now,
	}, nil
}

type imapSession struct {
	cli    *imapclient.Client
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

func (s *imapSession) ListUnread(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapNetwork(err)
	}

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	data, err := s.cli.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, wrapNetwork(fmt.Errorf("search unseen: %v", err))
	}

	uids := data.AllUIDs()
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if s.cfg.MaxPerCycle > 0 && len(uids) > s.cfg.MaxPerCycle {
		uids = uids[:s.cfg.MaxPerCycle]
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

func (s *imapSession) Fetch(ctx context.Context, id string) (*models.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapFetch(err)
	}

	uid, err := parseUID(id)
	if err != nil {
		return nil, wrapFetch(err)
	}

	// BODY.PEEK keeps the message unread until a delivery decision is made
	section := &imap.FetchItemBodySection{Peek: true}
	options := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	msgs, err := s.cli.Fetch(imap.UIDSetNum(uid), options).Collect()
	if err != nil {
		return nil, wrapFetch(fmt.Errorf("fetch uid %s: %v", id, err))
	}
	if len(msgs) == 0 {
		return nil, wrapFetch(fmt.Errorf("fetch uid %s: no data returned", id))
	}

	raw := msgs[0].FindBodySection(section)
	if len(raw) == 0 {
		raw = msgs[0].FindBodySection(&imap.FetchItemBodySection{})
	}
	if len(raw) == 0 {
		return nil, wrapFetch(fmt.Errorf("fetch uid %s: empty body section", id))
	}

	return normalize.ParseMessage(id, raw, s.now()), nil
}

func (s *imapSession) MarkSeen(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return wrapMark(err)
	}

	uid, err := parseUID(id)
	if err != nil {
		return wrapMark(err)
	}

	flags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := s.cli.Store(imap.UIDSetNum(uid), flags, nil).Close(); err != nil {
		return wrapMark(fmt.Errorf("store uid %s: %v", id, err))
	}

	s.logger.Debug().Str("message_id", id).Msg("message marked seen")
	return nil
}

func (s *imapSession) Close() error {
	if err := s.cli.Logout().Wait(); err != nil {
		_ = s.cli.Close()
		return wrapNetwork(fmt.Errorf("logout: %v", err))
	}
	return nil
}

func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q", id)
	}
	return imap.UID(n), nil
}
