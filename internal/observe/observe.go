// Package observe times and logs core operations at the transport boundary.
package observe

import (
	"context"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

type Recorder struct {
	logger   zerolog.Logger
	duration *prometheus.HistogramVec
	now      func() time.Time
}

func NewRecorder(reg prometheus.Registerer, logger zerolog.Logger) (*Recorder, error) {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "brickbracket",
		Name:      "operation_duration_seconds",
		Help:      "Duration of bracket operations by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	if err := reg.Register(duration); err != nil {
		return nil, err
	}

	return &Recorder{
		logger:   logger.With().Str("component", "observe").Logger(),
		duration: duration,
		now:      time.Now,
	}, nil
}

// Observe runs fn as the named operation. Domain errors are logged at debug
// with their code, anything else at error.
func (r *Recorder) Observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := r.now()
	err := fn(ctx)
	elapsed := r.now().Sub(start)

	outcome := Outcome(err)
	r.duration.WithLabelValues(op, outcome).Observe(elapsed.Seconds())

	logger := r.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}

	var event *zerolog.Event
	switch {
	case err == nil:
		event = logger.Debug()
	case bracket.ClassOf(err) != nil:
		event = logger.Debug().Str("code", bracket.CodeOf(err)).Err(err)
	default:
		event = logger.Error().Err(err)
	}
	event.Str("operation", op).
		Str("outcome", outcome).
		Dur("duration", elapsed).
		Msg("operation finished")

	return err
}

// Outcome is the metric label for err: "ok", the domain error code, or
// "error" for failures outside the taxonomy.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if bracket.ClassOf(err) == nil {
		return OutcomeError
	}
	return bracket.CodeOf(err)
}
