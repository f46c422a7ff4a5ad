package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"userhub/api/internal/repository"
)

// Scheduler runs the periodic cleanup of expired action tokens and
// refresh-token sessions.
type Scheduler struct {
	cron     *cron.Cron
	tokens   *repository.TokenRepository
	sessions *repository.SessionRepository
	log      zerolog.Logger
}

func NewScheduler(tokens *repository.TokenRepository, sessions *repository.SessionRepository, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		tokens:   tokens,
		sessions: sessions,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.purgeExpired); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish, up to a short grace period.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) purgeExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tokens, err := s.tokens.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired tokens failed")
	}

	sessions, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired sessions failed")
	}

	if tokens > 0 || sessions > 0 {
		s.log.Info().
			Int64("tokens", tokens).
			Int64("sessions", sessions).
			Msg("purged expired rows")
	}
}
