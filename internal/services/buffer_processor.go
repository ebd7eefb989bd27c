package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/internal/infrastructure/buffer"
	"github.com/fastygo/foodbridge/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// Retention drops items older than this regardless of their retry count.
	Retention time.Duration
}

// BufferProcessor replays buffered notifications and lifecycle events into primary storage.
type BufferProcessor struct {
	store         *buffer.Store
	monitor       ConnectionHealth
	notifications repository.NotificationRepository
	events        repository.EventRepository
	logger        *zap.Logger
	cron          *cron.Cron
	cfg           ProcessorConfig
	now           func() time.Time
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	notifications repository.NotificationRepository,
	events repository.EventRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:         store,
		monitor:       monitor,
		notifications: notifications,
		events:        events,
		logger:        logger,
		cfg:           cfg,
		cron:          cron.New(cron.WithSeconds()),
		now:           time.Now,
	}

	schedule := fmt.Sprintf("@every %ds", max(1, int(cfg.Interval.Seconds())))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch synchronously. Items that keep failing are dropped after
// MaxRetries attempts; items past the retention window are purged first.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	if bp.cfg.Retention > 0 {
		purged, err := bp.store.Purge(bp.now().Add(-bp.cfg.Retention))
		if err != nil {
			return err
		}
		if purged > 0 {
			bp.logger.Warn("expired buffer items purged", zap.Int("count", purged))
		}
	}

	items, err := bp.store.Peek(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := bp.replay(ctx, item); err != nil {
			if item.Attempts+1 >= bp.cfg.MaxRetries {
				bp.logger.Warn("dropping buffer item (max retries reached)",
					zap.String("item_id", item.ID),
					zap.String("kind", item.Kind),
					zap.Error(err))
				if ackErr := bp.store.Ack(item); ackErr != nil {
					bp.logger.Error("failed to drop buffer item", zap.Error(ackErr))
				}
				continue
			}
			bp.logger.Info("buffer item replay failed",
				zap.String("item_id", item.ID),
				zap.String("kind", item.Kind),
				zap.Int("attempts", item.Attempts+1),
				zap.Error(err))
			if retryErr := bp.store.Retry(item, err); retryErr != nil {
				bp.logger.Error("failed to requeue buffer item", zap.Error(retryErr))
			}
			continue
		}

		if err := bp.store.Ack(item); err != nil {
			bp.logger.Warn("failed to purge processed buffer item", zap.Error(err))
		}
	}
	return nil
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Len()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) replay(ctx context.Context, item buffer.Item) error {
	switch item.Kind {
	case buffer.KindNotification:
		var n domain.Notification
		if err := json.Unmarshal(item.Payload, &n); err != nil {
			return err
		}
		return bp.notifications.Create(ctx, &n)
	case buffer.KindEvent:
		var e domain.Event
		if err := json.Unmarshal(item.Payload, &e); err != nil {
			return err
		}
		return bp.events.Append(ctx, e)
	default:
		return fmt.Errorf("unsupported buffer kind %s", item.Kind)
	}
}
