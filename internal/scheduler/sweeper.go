// Package scheduler drives stage advancement for tournaments whose stage
// deadline has passed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/service"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Advancer closes the current stage of a tournament.
type Advancer interface {
	DueTournaments(ctx context.Context) ([]bracket.Tournament, error)
	Advance(ctx context.Context, tournamentID uuid.UUID, nextStageHours *int) (*service.AdvanceResult, error)
}

// WinnerRecorder stores the winner record of a completed tournament.
type WinnerRecorder interface {
	RecordFromParticipant(ctx context.Context, tournamentID, participantID uuid.UUID) (*bracket.Winner, error)
}

type Options struct {
	Schedule          string
	Concurrency       int
	StageHours        int
	AutoRecordWinners bool
	// Upper bound for one run
	Timeout time.Duration
}

// Failure is one tournament the sweep could not advance.
type Failure struct {
	TournamentID uuid.UUID
	Err          error
}

type Report struct {
	Checked   int
	Advanced  int
	Completed int
	Recorded  int
	// Already advanced by another caller
	Skipped  int
	Failures []Failure
}

type StageSweeper struct {
	advancer Advancer
	winners  WinnerRecorder
	opts     Options
	logger   zerolog.Logger

	runs     *prometheus.CounterVec
	advances *prometheus.CounterVec
	cron     *cron.Cron
}

func NewStageSweeper(advancer Advancer, winners WinnerRecorder, opts Options, reg prometheus.Registerer, logger zerolog.Logger) (*StageSweeper, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brickbracket",
		Name:      "sweep_runs_total",
		Help:      "Stage sweep runs by result.",
	}, []string{"result"})
	advances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brickbracket",
		Name:      "sweep_tournaments_total",
		Help:      "Tournaments handled by the stage sweep by result.",
	}, []string{"result"})
	for _, c := range []prometheus.Collector{runs, advances} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &StageSweeper{
		advancer: advancer,
		winners:  winners,
		opts:     opts,
		logger:   logger.With().Str("component", "sweeper").Logger(),
		runs:     runs,
		advances: advances,
	}, nil
}

// Start schedules the sweep. A run still in progress makes the next tick skip.
func (s *StageSweeper) Start() error {
	if s.cron != nil {
		return errors.New("sweeper already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(s.opts.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.opts.Schedule, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info().Str("schedule", s.opts.Schedule).Int("concurrency", s.opts.Concurrency).Msg("stage sweeper started")
	return nil
}

// Stop halts scheduling and waits for a running sweep or ctx, whichever ends first.
func (s *StageSweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("stage sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce advances every due tournament. Tournaments are handled
// independently: a failure is recorded in the report and the rest continue.
func (s *StageSweeper) RunOnce(ctx context.Context) Report {
	var report Report

	due, err := s.advancer.DueTournaments(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list due tournaments")
		s.runs.WithLabelValues("error").Inc()
		report.Failures = append(report.Failures, Failure{Err: err})
		return report
	}
	report.Checked = len(due)

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for _, t := range due {
		g.Go(func() error {
			result, recorded, err := s.sweepOne(gCtx, t.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case result != nil && result.Completed:
				report.Advanced++
				report.Completed++
			case result != nil:
				report.Advanced++
			case err == nil:
				report.Skipped++
			}
			if recorded {
				report.Recorded++
			}
			if err != nil {
				report.Failures = append(report.Failures, Failure{TournamentID: t.ID, Err: err})
			}
			// never abort the group, other tournaments still need their turn
			return nil
		})
	}
	_ = g.Wait()

	s.advances.WithLabelValues("advanced").Add(float64(report.Advanced - report.Completed))
	s.advances.WithLabelValues("completed").Add(float64(report.Completed))
	s.advances.WithLabelValues("skipped").Add(float64(report.Skipped))
	s.advances.WithLabelValues("failed").Add(float64(len(report.Failures)))
	if len(report.Failures) > 0 {
		s.runs.WithLabelValues("partial").Inc()
	} else {
		s.runs.WithLabelValues("ok").Inc()
	}

	event := s.logger.Info()
	if len(report.Failures) > 0 {
		event = s.logger.Warn()
	}
	event.Int("checked", report.Checked).
		Int("advanced", report.Advanced).
		Int("completed", report.Completed).
		Int("recorded", report.Recorded).
		Int("skipped", report.Skipped).
		Int("failed", len(report.Failures)).
		Msg("stage sweep finished")

	return report
}

// sweepOne advances one tournament. A nil result with a nil error means the
// tournament was no longer due.
func (s *StageSweeper) sweepOne(ctx context.Context, id uuid.UUID) (*service.AdvanceResult, bool, error) {
	hours := s.opts.StageHours
	var next *int
	if hours > 0 {
		next = &hours
	}

	result, err := s.advancer.Advance(ctx, id, next)
	if err != nil {
		// another caller advanced it between listing and now
		if errors.Is(err, bracket.ErrAdvanceConflict) || errors.Is(err, bracket.ErrStageNotYetOver) ||
			errors.Is(err, bracket.ErrTournamentCompleted) {
			s.logger.Debug().Str("tournament_id", id.String()).Err(err).Msg("tournament already advanced")
			return nil, false, nil
		}
		s.logger.Error().Err(err).Str("tournament_id", id.String()).Msg("failed to advance tournament")
		return nil, false, err
	}

	if !result.Completed || !s.opts.AutoRecordWinners || s.winners == nil {
		return result, false, nil
	}

	if _, err := s.winners.RecordFromParticipant(ctx, id, *result.ChampionID); err != nil {
		if errors.Is(err, bracket.ErrDuplicateWinner) {
			return result, false, nil
		}
		s.logger.Error().Err(err).Str("tournament_id", id.String()).Msg("failed to record winner")
		return result, false, fmt.Errorf("tournament completed but winner not recorded: %w", err)
	}
	return result, true, nil
}
