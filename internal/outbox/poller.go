package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/skinet/internal/domain"
	"github.com/fjod/skinet/internal/queries"
	"github.com/fjod/skinet/internal/store"
)

// Poller publishes unprocessed outbox events and marks them processed.
// Delivery is at least once: an event whose mark fails is published again.
type Poller struct {
	store     *store.Store
	publisher Publisher
	eventTick time.Duration
	batch     int
	logger    *slog.Logger
}

func NewPoller(s *store.Store, publisher Publisher, tick time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		store:     s,
		publisher: publisher,
		eventTick: tick,
		batch:     100,
		logger:    logger,
	}
}

func (p *Poller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) processUnpublishedEvents(ctx context.Context) int {
	uow := p.store.NewUnitOfWork()
	defer uow.Close()
	repo := store.Repo[domain.OutboxEvent](uow)

	events, err := repo.List(ctx, queries.UnprocessedEvents(p.batch))
	if err != nil {
		p.logger.Error("failed to fetch outbox events", "error", err)
		return 0
	}

	published := 0
	for i := range events {
		event := &events[i]
		if err := p.publisher.Publish(ctx, *event); err != nil {
			p.logger.Error("failed to publish outbox event", "event_id", event.ID, "error", err)
			continue
		}

		now := time.Now().UTC()
		event.Processed = true
		event.ProcessedAt = &now
		repo.Update(event)
		if _, err := uow.Complete(ctx); err != nil {
			p.logger.Error("failed to mark outbox event as processed", "event_id", event.ID, "error", err)
			continue
		}
		published++
	}
	return published
}
