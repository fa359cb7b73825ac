package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/redrive-go/consumer"
)

// ConnectionPool owns one AMQP connection and hands out channels keyed by an
// opaque identifier. A consumer asking again under the same key, typically
// while reconnecting, gets a fresh channel replacing the previous one.
type ConnectionPool struct {
	url         string
	dialTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	channels map[string]*Channel
	closed   bool
}

// PoolOption configures the connection pool
type PoolOption func(*ConnectionPool)

// WithDialTimeout sets the timeout for establishing the connection
func WithDialTimeout(timeout time.Duration) PoolOption {
	return func(p *ConnectionPool) {
		p.dialTimeout = timeout
	}
}

// WithPoolLogger sets the logger
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *ConnectionPool) {
		p.logger = logger
	}
}

// NewConnectionPool creates a pool dialing url lazily on first use
func NewConnectionPool(url string, options ...PoolOption) *ConnectionPool {
	p := &ConnectionPool{
		url:         url,
		dialTimeout: 30 * time.Second,
		logger:      slog.Default(),
		channels:    make(map[string]*Channel),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Connect establishes the connection eagerly
func (p *ConnectionPool) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	_, err := p.connection(ctx)
	return err
}

// OpenChannel returns a fresh channel bound to key, dialing or redialing the
// connection if necessary. It implements consumer.ChannelProvider.
func (p *ConnectionPool) OpenChannel(ctx context.Context, key string) (consumer.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	conn, err := p.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, &ChannelError{Op: "open", Key: key, Err: err, Timestamp: time.Now()}
	}

	if prior, ok := p.channels[key]; ok {
		prior.Close()
	}

	channel := newChannel(ch, key, p.logger)
	p.channels[key] = channel

	p.logger.Debug("opened channel", "key", key)
	return channel, nil
}

// IsConnected reports whether the underlying connection is usable
func (p *ConnectionPool) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed()
}

// Close closes every channel and the connection
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, ch := range p.channels {
		ch.Close()
	}
	p.channels = nil

	if p.conn != nil && !p.conn.IsClosed() {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// connection returns the live connection, dialing if needed. Callers hold p.mu.
func (p *ConnectionPool) connection(ctx context.Context) (*amqp.Connection, error) {
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	connChan := make(chan *amqp.Connection, 1)
	errChan := make(chan error, 1)
	go func() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			errChan <- err
			return
		}
		connChan <- conn
	}()

	select {
	case conn := <-connChan:
		p.conn = conn
		p.logger.Info("connected to RabbitMQ", "url", SanitizeURL(p.url))
		return conn, nil

	case err := <-errChan:
		return nil, &ConnectionError{Op: "dial", URL: SanitizeURL(p.url), Err: err, Timestamp: time.Now()}

	case <-dialCtx.Done():
		return nil, &ConnectionError{Op: "dial", URL: SanitizeURL(p.url), Err: ErrConnectionTimeout, Timestamp: time.Now()}
	}
}

// Execute runs fn with a short-lived raw channel, used for topology declares
func (p *ConnectionPool) Execute(ctx context.Context, fn func(*amqp.Channel) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	conn, err := p.connection(ctx)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return &ChannelError{Op: "open", Key: "execute", Err: err, Timestamp: time.Now()}
	}
	defer ch.Close()

	return fn(ch)
}
