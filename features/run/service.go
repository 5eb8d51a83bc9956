package run

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kismet-tech/NLWeb/internal/config"
)

const defaultPublishTimeout = 5 * time.Second

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Service records finished runs. Both the repository and the publisher are
// optional; a nil one is skipped.
type Service struct {
	repo           Repository
	pub            EventPublisher
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub, publishTimeout: defaultPublishTimeout}
}

// Record persists the run and announces it. Failures are logged and returned
// joined; they never change the outcome of the run itself.
func (s *Service) Record(ctx context.Context, r *Run) error {
	var errs []error

	// 1. Ledger
	if s.repo != nil {
		if err := s.repo.Save(ctx, r); err != nil {
			slog.WarnContext(ctx, "failed to save run", "run_id", r.ID, "error", err)
			errs = append(errs, err)
		}
	}

	// 2. Event
	if s.pub != nil {
		if err := s.publish(ctx, r); err != nil {
			slog.WarnContext(ctx, "failed to publish run event", "run_id", r.ID, "topic", config.TopicRunCompleted, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) publish(ctx context.Context, r *Run) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicRunCompleted, body)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(s.publishTimeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) Recent(ctx context.Context, site string, limit int) ([]Run, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListBySite(ctx, site, limit)
}
