package ledger

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// options are shared by Engine, Catalog and Aggregator.
type options struct {
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
	newID     func() string
	weekStart time.Weekday
	location  *time.Location
}

type Option func(*options)

func defaultOptions() options {
	return options{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		newID:     uuid.NewString,
		weekStart: time.Sunday,
		location:  time.UTC,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides time.Now; used by tests to pin "this week/month".
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithWeekStart sets the first day of the "this week" window.
func WithWeekStart(d time.Weekday) Option {
	return func(o *options) { o.weekStart = d }
}

// WithLocation sets the time zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}
