package oidcsession

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/webauthkit/oidcsession/provider"
	"github.com/webauthkit/oidcsession/session"
)

// Builder defines a public type used by the session lifecycle engine.
//
// Builder assembles a [Manager] step by step. It is single-use: Build may
// be called once, and the Builder must not be reused afterwards.
type Builder struct {
	config       Config
	redisClient  redis.UniversalClient
	redisOptions *redis.Options
	idp          IdentityProvider
	auditSink    AuditSink
	clock        func() time.Time
	built        bool
}

// New starts a [Builder] seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis injects an already-connected Redis client. The caller keeps
// ownership; [Manager.Close] will not close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redisClient = client
	return b
}

// WithRedisOptions selects lazy connection mode: the Manager opens the
// client on first store access and owns its lifecycle.
func (b *Builder) WithRedisOptions(opts *redis.Options) *Builder {
	b.redisOptions = opts
	return b
}

// WithProvider injects the identity-provider binding, replacing the one
// Build would construct from Config.Provider.
func (b *Builder) WithProvider(idp IdentityProvider) *Builder {
	b.idp = idp
	return b
}

// WithAuditSink sets the sink the async audit dispatcher delivers to.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the assembled dependencies and returns the [Manager].
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redisClient == nil && b.redisOptions == nil {
		return nil, errors.New("redis client or options required")
	}

	codec, err := session.NewCodec(cfg.Encryption.HexKey)
	if err != nil {
		return nil, err
	}

	idp := b.idp
	if idp == nil {
		p, err := provider.New(cfg.Provider, nil)
		if err != nil {
			return nil, err
		}
		idp = p
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	m := &Manager{
		config:  cfg,
		idp:     idp,
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		now:     clock,
		codec:   codec,
	}

	if b.redisClient != nil {
		m.st = session.NewStore(b.redisClient, codec, cfg.Session.RedisPrefix, cfg.Session.TTL)
	} else {
		m.conn = session.NewConn(b.redisOptions)
	}

	return m, nil
}
