package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/usecase"
)

// OrganizeScheduler kicks off a memory organization run on a fixed interval,
// so stores get deduplicated and compressed even when nobody presses the
// button. A run already in progress is left alone.
type OrganizeScheduler struct {
	interval time.Duration
	organize usecase.OrganizeUseCase
	log      *zerolog.Logger
}

func NewOrganizeScheduler(interval time.Duration, organize usecase.OrganizeUseCase, logger *zerolog.Logger) *OrganizeScheduler {
	l := logger.With().Str("component", "OrganizeScheduler").Logger()
	return &OrganizeScheduler{
		interval: interval,
		organize: organize,
		log:      &l,
	}
}

func (s *OrganizeScheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("starting organize scheduler")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("stopping organize scheduler")
			return ctx.Err()
		case <-ticker.C:
			err := s.organize.Start(ctx)
			switch {
			case errors.Is(err, domain.ErrJobAlreadyRunning):
				// Start already counted the rejection.
				s.log.Debug().Msg("organize already running, skipping scheduled run")
			case err != nil:
				s.log.Error().Err(err).Msg("scheduled organize failed to start")
			default:
				s.log.Info().Msg("scheduled organize started")
			}
		}
	}
}
