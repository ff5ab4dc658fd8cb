package usersvc

import (
	"errors"
	"time"

	"github.com/LeeSeungPhill/user-api-svc/jwt"
	"github.com/LeeSeungPhill/user-api-svc/password"
	"github.com/rs/zerolog"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	store  AccountStore
	ledger Ledger
	hasher password.Hasher
	log    zerolog.Logger
	clock  func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig and a disabled logger.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		log:    zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAccountStore sets the required account store.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithLedger sets the login attempt ledger. When unset and the account
// store also implements Ledger, the store is used.
func (b *Builder) WithLedger(ledger Ledger) *Builder {
	b.ledger = ledger
	return b
}

// WithHasher overrides the hasher derived from Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = log
	return b
}

// WithClock overrides the time source. now is read once per operation.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("account store required")
	}

	ledger := b.ledger
	if ledger == nil {
		l, ok := b.store.(Ledger)
		if !ok {
			return nil, errors.New("ledger required")
		}
		ledger = l
	}

	codec, err := jwt.NewManager(cfg.codecConfig())
	if err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		h, err := password.New(cfg.hasherConfig())
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	b.built = true

	return &Engine{
		config:  cfg,
		store:   b.store,
		ledger:  ledger,
		hasher:  hasher,
		codec:   codec,
		metrics: NewMetrics(cfg.Metrics),
		log:     b.log.With().Str("component", "account_engine").Logger(),
		now:     clock,
	}, nil
}
