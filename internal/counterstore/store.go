package counterstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

// Category labels why a counter read fell back to zero.
type Category string

const (
	CategoryNone       Category = ""
	CategoryConnection Category = "connection-error"
	CategoryTimeout    Category = "timeout-error"
	CategoryUnknown    Category = "unknown-error"
)

// Getter is the part of a Redis client the store needs.
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Reading is the outcome of one counter read. Value is always >= 0.
type Reading struct {
	Value   int64
	Found   bool
	Failure Category
	Err     error
}

type Options struct {
	Addr        string
	DB          int
	Password    string
	DialTimeout time.Duration
	ReadTimeout time.Duration
	PoolSize    int
}

// NewClient builds the shared Redis client. Client-side retries are
// disabled so one read is one attempt.
func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:             opts.Addr,
		DB:               opts.DB,
		Password:         opts.Password,
		DialTimeout:      opts.DialTimeout,
		ReadTimeout:      opts.ReadTimeout,
		WriteTimeout:     opts.ReadTimeout,
		PoolSize:         opts.PoolSize,
		PoolTimeout:      opts.ReadTimeout,
		MaxRetries:       -1,
		DisableIndentity: true,
	})
}

// Store reads the counter through a shared, concurrency-safe client.
type Store struct {
	client Getter
	logger *slog.Logger
}

func New(client Getter, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger.With(slog.String("component", "counterstore")),
	}
}

// ReadCounter returns the counter stored under key, or 0 when it is absent
// or cannot be read.
func (s *Store) ReadCounter(ctx context.Context, key string) int64 {
	return s.Read(ctx, key).Value
}

// Read is ReadCounter with the failure details kept for the caller.
func (s *Store) Read(ctx context.Context, key string) Reading {
	if key == "" {
		s.logger.Warn("Counter key is empty", slog.String("category", string(CategoryUnknown)))
		return Reading{Failure: CategoryUnknown, Err: errors.New("counterstore: empty key")}
	}

	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Reading{}
	}
	if err != nil {
		category := Classify(err)
		s.logger.Warn("Failed to read counter",
			slog.String("key", key),
			slog.String("category", string(category)),
			slog.String("error", err.Error()))
		return Reading{Failure: category, Err: err}
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("Counter value is not an integer",
			slog.String("key", key),
			slog.String("value", raw),
			slog.String("category", string(CategoryUnknown)))
		return Reading{Found: true, Failure: CategoryUnknown, Err: err}
	}

	if value < 0 {
		s.logger.Debug("Negative counter clamped to zero",
			slog.String("key", key),
			slog.Int64("value", value))
		value = 0
	}

	return Reading{Value: value, Found: true}
}

// Classify maps a store error to its failure category.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return CategoryTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return CategoryTimeout
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, redis.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return CategoryConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryConnection
	}

	return CategoryUnknown
}
