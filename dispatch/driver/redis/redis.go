package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-dispatch/dispatch"
	"github.com/infigaming-com/go-dispatch/util"
)

type Config struct {
	Addr           string `mapstructure:"ADDR"`
	Password       string `mapstructure:"PASSWORD"`
	DB             int64  `mapstructure:"DB"`
	ConnectTimeout int64  `mapstructure:"CONNECT_TIMEOUT"`
}

// Factory opens one dedicated Redis pub/sub session per Connect. Sessions
// share the client's dialer and credentials but not its command pool.
type Factory struct {
	lg             *zap.Logger
	client         goredis.UniversalClient
	connectTimeout time.Duration
}

type Option func(*Factory)

// WithConnectTimeout bounds the ping issued by Connect. Default: 5s.
func WithConnectTimeout(d time.Duration) Option {
	return func(f *Factory) {
		if d > 0 {
			f.connectTimeout = d
		}
	}
}

var _ dispatch.ConnectionFactory = (*Factory)(nil)

func NewFactory(lg *zap.Logger, client goredis.UniversalClient, opts ...Option) *Factory {
	if lg == nil {
		lg = zap.NewNop()
	}
	f := &Factory{lg: lg, client: client, connectTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFactoryFromConfig builds the Redis client as well. The returned func
// closes it.
func NewFactoryFromConfig(ctx context.Context, lg *zap.Logger, cfg *Config) (*Factory, func(), error) {
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client, err := util.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB, timeout)
	if err != nil {
		return nil, nil, err
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	lg.Info("connected to redis for dispatch", zap.String("addr", cfg.Addr), zap.Int("db", int(cfg.DB)))
	return NewFactory(lg, client, WithConnectTimeout(timeout)), func() {
		client.Close()
		lg.Info("closed redis connection for dispatch", zap.String("addr", cfg.Addr), zap.Int("db", int(cfg.DB)))
	}, nil
}

func (f *Factory) Connect(ctx context.Context) (dispatch.Connection, error) {
	pingCtx, cancel := context.WithTimeout(ctx, f.connectTimeout)
	defer cancel()
	if err := f.client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis: connect: %w", err)
	}
	return &conn{ps: f.client.Subscribe(ctx)}, nil
}

type conn struct {
	ps *goredis.PubSub
}

func (c *conn) Subscribe(ctx context.Context, topic string) error {
	return c.ps.Subscribe(ctx, topic)
}

func (c *conn) Unsubscribe(ctx context.Context, topic string) error {
	return c.ps.Unsubscribe(ctx, topic)
}

// Read blocks for the next pub/sub reply. Pongs are skipped. Any reply
// other than subscribe, unsubscribe or message (psubscribe and ssubscribe
// included) comes back as a zero-kind event, which the manager treats as
// fatal.
func (c *conn) Read(ctx context.Context) (dispatch.Event, error) {
	for {
		reply, err := c.ps.Receive(ctx)
		if err != nil {
			return dispatch.Event{}, err
		}
		switch r := reply.(type) {
		case *goredis.Message:
			return dispatch.Event{Kind: dispatch.EventMessage, Topic: r.Channel, Payload: []byte(r.Payload)}, nil
		case *goredis.Subscription:
			switch r.Kind {
			case "subscribe":
				return dispatch.Event{Kind: dispatch.EventSubscribed, Topic: r.Channel}, nil
			case "unsubscribe":
				return dispatch.Event{Kind: dispatch.EventUnsubscribed, Topic: r.Channel}, nil
			default:
				return dispatch.Event{Topic: r.Channel}, nil
			}
		case *goredis.Pong:
		default:
			// Outside the Connection contract; the manager stops on the zero kind.
			return dispatch.Event{}, nil
		}
	}
}

func (c *conn) Close() error {
	return c.ps.Close()
}
