package notify

import (
	"context"

	"golang.org/x/time/rate"

	"almanac/internal/driver"
	logx "almanac/pkg/logx"
)

// Limited throttles another sink with a token bucket shared by every tenant.
type Limited struct {
	next driver.Sink
	lim  *rate.Limiter
}

// NewLimited allows perSec deliveries per second with burst = perSec, so
// short spikes don't block too hard. perSec <= 0 defaults to 3.
func NewLimited(next driver.Sink, perSec int) *Limited {
	if perSec <= 0 {
		perSec = 3
	}
	return &Limited{next: next, lim: rate.NewLimiter(rate.Limit(perSec), perSec)}
}

func (l *Limited) Deliver(ctx context.Context, tenantID, channel string, p driver.Payload) error {
	// Waiting counts against the caller's delivery timeout.
	if err := l.lim.Wait(ctx); err != nil {
		return err
	}
	return l.next.Deliver(ctx, tenantID, channel, p)
}

// Log writes payloads to the logger instead of a chat. Used for dry runs and
// when no chat transport is configured.
type Log struct {
	log logx.Logger
}

func NewLog(log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{log: log.With(logx.Comp("sink.log"))}
}

func (s *Log) Deliver(ctx context.Context, tenantID, channel string, p driver.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("post",
		logx.Tenant(tenantID),
		logx.String("channel", channel),
		logx.String("kind", p.Kind),
		logx.String("text", p.Text),
	)
	return nil
}
