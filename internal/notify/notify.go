// Package notify fans run status and progress samples out over Redis
// pub/sub so observers can follow a run without polling the store.
//
//	arcplan run ──PUBLISH arcplan:run:<id>──▶ Redis ──▶ subscribers
//
// Publishing is best effort: samples are rate limited and dropped when the
// publisher falls behind, so a slow Redis never stalls the solver output
// reader. Status events are published synchronously.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/roach88/arcplan/internal/progress"
)

// Event kinds.
const (
	KindSample = "sample"
	KindStatus = "status"
)

// runIDPattern bounds run ids used in channel names.
var runIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// Event is the payload published for a run.
type Event struct {
	Version   string           `json:"version"`
	Kind      string           `json:"kind"`
	RunID     string           `json:"run_id"`
	Timestamp string           `json:"timestamp"`
	Status    string           `json:"status,omitempty"`
	Error     string           `json:"error,omitempty"`
	Sample    *progress.Sample `json:"sample,omitempty"`
}

// Channel returns the pub/sub channel of a run.
func Channel(runID string) string {
	return "arcplan:run:" + runID
}

// Config configures a Publisher.
type Config struct {
	// RedisURL is a redis:// or rediss:// URL.
	RedisURL string
	// Rate is the sustained sample rate per second (default 10).
	Rate float64
	// Burst is the sample burst size (default 20).
	Burst int
	// Buffer is the queue length between the reader and Redis (default 256).
	Buffer int
}

func (c *Config) defaults() {
	if c.Rate <= 0 {
		c.Rate = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
}

// Publisher publishes run events.
type Publisher struct {
	client  *redis.Client
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
	queue  chan Event
	done   chan struct{}

	dropped atomic.Int64
}

// NewPublisher connects to cfg.RedisURL.
func NewPublisher(cfg Config) (*Publisher, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse Redis URL: %w", err)
	}
	return NewPublisherWithClient(redis.NewClient(opts), cfg), nil
}

// NewPublisherWithClient wraps an existing client. Close closes the client.
func NewPublisherWithClient(client *redis.Client, cfg Config) *Publisher {
	cfg.defaults()
	p := &Publisher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		queue:   make(chan Event, cfg.Buffer),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

// Ping checks the connection.
func (p *Publisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	return nil
}

// Dropped returns the number of samples not published.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// PublishStatus publishes a status change synchronously.
func (p *Publisher) PublishStatus(ctx context.Context, runID, status, errMsg string) error {
	if !runIDPattern.MatchString(runID) {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return p.publish(ctx, Event{
		Version:   "1.0",
		Kind:      KindStatus,
		RunID:     runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Status:    status,
		Error:     errMsg,
	})
}

// Handler returns a progress.Handler that publishes samples for runID.
// Lines are not published.
func (p *Publisher) Handler(runID string) progress.Handler {
	return progress.Funcs{OnSample: func(s progress.Sample) {
		p.enqueue(runID, s)
	}}
}

func (p *Publisher) enqueue(runID string, s progress.Sample) {
	if !p.limiter.Allow() {
		p.dropped.Add(1)
		return
	}
	ev := Event{
		Version:   "1.0",
		Kind:      KindSample,
		RunID:     runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Sample:    &s,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.queue <- ev:
	default:
		p.dropped.Add(1)
	}
}

func (p *Publisher) loop() {
	defer close(p.done)
	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := p.publish(ctx, ev); err != nil {
			slog.Debug("progress publish failed", "run_id", ev.RunID, "error", err)
		}
		cancel()
	}
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(ev.RunID), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", Channel(ev.RunID), err)
	}
	return nil
}

// Close flushes queued samples and closes the client.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	if n := p.dropped.Load(); n > 0 {
		slog.Debug("progress samples dropped", "count", n)
	}
	return p.client.Close()
}
