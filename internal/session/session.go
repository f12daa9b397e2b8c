// Package session wires credentials, the cassette recorder, the transport
// stack, the API client and the retrying dispatcher into one ready-to-use
// test session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/gosheets/internal/adapter/driven/auth"
	"github.com/ericfisherdev/gosheets/internal/adapter/driven/cassette"
	"github.com/ericfisherdev/gosheets/internal/adapter/driven/sheets"
	"github.com/ericfisherdev/gosheets/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/gosheets/internal/application"
	"github.com/ericfisherdev/gosheets/internal/config"
	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

// Session holds everything a test needs to talk to the API, either live or
// from a cassette.
type Session struct {
	Client   *sheets.Client
	Recorder *cassette.Recorder
	Tokens   driven.TokenProvider

	closeStore func() error
	logger     *slog.Logger
}

type options struct {
	baseTransport http.RoundTripper
	cassetteCfg   cassette.Config
	tokens        driven.TokenProvider
	store         driven.CassetteStore
	sleeper       application.Sleeper
	logger        *slog.Logger
}

// Option configures New.
type Option func(*options)

// WithBaseTransport sets the innermost transport, e.g. an httptest server's.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.baseTransport = rt }
}

// WithCassetteConfig overrides the recorder's matching and filtering rules.
func WithCassetteConfig(cfg cassette.Config) Option {
	return func(o *options) { o.cassetteCfg = cfg }
}

// WithTokens overrides the credential chosen from configuration.
func WithTokens(tp driven.TokenProvider) Option {
	return func(o *options) { o.tokens = tp }
}

// WithStore overrides the cassette store chosen from configuration. The
// session does not close a store passed this way.
func WithStore(s driven.CassetteStore) Option {
	return func(o *options) { o.store = s }
}

// WithSleeper replaces the dispatcher's wait between rate-limited attempts.
func WithSleeper(s application.Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a session that records to or replays from the named cassette.
// Callers must Close the session to persist what was recorded.
func New(ctx context.Context, cfg *config.Config, cassetteName string, opts ...Option) (*Session, error) {
	o := options{
		cassetteCfg: cassette.DefaultConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	tokens := o.tokens
	if tokens == nil {
		var err error
		if tokens, err = Credentials(ctx, cfg); err != nil {
			return nil, err
		}
	}

	store, closeStore := o.store, func() error { return nil }
	if store == nil {
		var err error
		if store, closeStore, err = OpenStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	network := sheets.NewTransport(sheets.TransportOptions{
		Base:              o.baseTransport,
		RequestsPerSecond: cfg.RateLimitRPS,
	})

	recorder, err := cassette.New(ctx, store, cassetteName, cfg.RecordMode, o.cassetteCfg, network)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	client, err := newClient(tokens, recorder, cfg, o)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	o.logger.Debug("session started",
		"cassette", cassetteName,
		"mode", cfg.RecordMode,
		"recording", recorder.Recording(),
		"service_account", cfg.HasServiceAccount(),
	)

	return &Session{
		Client:     client,
		Recorder:   recorder,
		Tokens:     tokens,
		closeStore: closeStore,
		logger:     o.logger,
	}, nil
}

// NewClient builds an API client that talks to the network directly, without
// a cassette. It is what the sweep command uses against the live API.
func NewClient(ctx context.Context, cfg *config.Config, opts ...Option) (*sheets.Client, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	tokens := o.tokens
	if tokens == nil {
		var err error
		if tokens, err = Credentials(ctx, cfg); err != nil {
			return nil, err
		}
	}

	network := sheets.NewTransport(sheets.TransportOptions{
		Base:              o.baseTransport,
		RequestsPerSecond: cfg.RateLimitRPS,
	})
	return newClient(tokens, network, cfg, o)
}

func newClient(tokens driven.TokenProvider, rt http.RoundTripper, cfg *config.Config, o options) (*sheets.Client, error) {
	dispatcherOpts := []application.DispatcherOption{
		application.WithFixedWait(cfg.RetryWait),
		application.WithMaxRetries(uint64(cfg.RetryMax)),
		application.WithDispatcherLogger(o.logger),
	}
	if o.sleeper != nil {
		dispatcherOpts = append(dispatcherOpts, application.WithSleeper(o.sleeper))
	}

	client, err := sheets.NewClient(
		auth.NewHTTPClient(tokens, rt),
		sheets.WithBaseURL(cfg.SheetsBaseURL),
		sheets.WithDriveBaseURL(cfg.DriveBaseURL),
		sheets.WithTimeout(cfg.RequestTimeout),
		sheets.WithLogger(o.logger),
		sheets.WithMiddleware(application.Middleware(dispatcherOpts...)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	return client, nil
}

// Credentials returns the service-account credential when a key file is
// configured and the stand-in credential otherwise.
func Credentials(ctx context.Context, cfg *config.Config) (driven.TokenProvider, error) {
	if !cfg.HasServiceAccount() {
		return auth.NewDummyCredential(), nil
	}
	sa, err := auth.LoadServiceAccount(ctx, cfg.CredsFilename, model.DefaultScopes)
	if err != nil {
		return nil, fmt.Errorf("loading credentials from GS_CREDS_FILENAME: %w", err)
	}
	return sa, nil
}

// OpenStore opens the configured cassette store: SQLite when a database path
// is set, JSON files otherwise. The returned func releases the store.
func OpenStore(ctx context.Context, cfg *config.Config) (driven.CassetteStore, func() error, error) {
	if !cfg.UsesSQLite() {
		return cassette.NewFileStore(cfg.CassetteDir, cassette.DefaultConfig().PathTransformer), func() error { return nil }, nil
	}

	db, err := sqlite.NewDB(ctx, cfg.CassetteDB)
	if err != nil {
		return nil, nil, fmt.Errorf("opening cassette database: %w", err)
	}
	if _, err := sqlite.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrating cassette database: %w", err)
	}
	return sqlite.NewCassetteRepo(db), db.Close, nil
}

// TemporarySpreadsheet creates the "Test <suiteName>" spreadsheet and returns
// it with a function that deletes it again.
func (s *Session) TemporarySpreadsheet(ctx context.Context, suiteName string) (*model.Spreadsheet, func(context.Context) error, error) {
	sp, err := s.Client.CreateSpreadsheet(ctx, application.TemporarySpreadsheetTitle(suiteName))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func(ctx context.Context) error {
		return s.Client.DeleteSpreadsheet(ctx, sp.ID)
	}
	return sp, cleanup, nil
}

// Close persists newly recorded interactions and releases the store.
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if err := s.Recorder.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("closing cassette store: %w", err))
	}
	return errors.Join(errs...)
}
