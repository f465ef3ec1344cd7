package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/repository"
)

// CleanupJob prunes durable delivery state on a fixed interval: delivered
// offline messages past retention and receipts past their retention window.
// Undelivered messages past the safety bound are never deleted automatically,
// only counted and logged for operator review.
type CleanupJob struct {
	offlineRepo      repository.OfflineMessageRepository
	receiptRepo      repository.ReceiptRepository
	offlineRetention time.Duration
	safetyBound      time.Duration
	receiptRetention time.Duration
	interval         time.Duration
	done             chan struct{}
}

func NewCleanupJob(
	offlineRepo repository.OfflineMessageRepository,
	receiptRepo repository.ReceiptRepository,
	offlineRetention time.Duration,
	safetyBound time.Duration,
	receiptRetention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		offlineRepo:      offlineRepo,
		receiptRepo:      receiptRepo,
		offlineRetention: offlineRetention,
		safetyBound:      safetyBound,
		receiptRetention: receiptRetention,
		interval:         interval,
		done:             make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()

	j.runCleanup(ctx, "delivered offline messages", func(ctx context.Context) (int64, error) {
		return j.offlineRepo.DeleteDeliveredBefore(ctx, now.Add(-j.offlineRetention))
	})
	j.runCleanup(ctx, "delivery receipts", func(ctx context.Context) (int64, error) {
		return j.receiptRepo.DeleteOlderThan(ctx, now.Add(-j.receiptRetention))
	})

	stuck, err := j.offlineRepo.CountUndeliveredBefore(ctx, now.Add(-j.safetyBound))
	if err != nil {
		log.Error().Err(err).Msg("failed to count stale undelivered messages")
	} else if stuck > 0 {
		log.Warn().Int("count", stuck).Msg("undelivered messages past safety bound, manual review needed")
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
