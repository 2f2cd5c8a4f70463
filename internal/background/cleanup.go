package background

import (
	"context"
	"log/slog"
	"time"

	"authcore/internal/repositories"
)

// CleanupManager runs the retention sweeps: refresh tokens whose expiry
// predates the token retention window are deleted, and login history older
// than the history retention window is purged. It never touches active or
// unexpired rows.
type CleanupManager struct {
	uow              repositories.UnitOfWorkFactory
	logger           *slog.Logger
	interval         time.Duration
	tokenRetention   time.Duration
	historyRetention time.Duration
	stopCh           chan struct{}
}

func NewCleanupManager(uow repositories.UnitOfWorkFactory, logger *slog.Logger, interval, tokenRetention, historyRetention time.Duration) *CleanupManager {
	return &CleanupManager{
		uow:              uow,
		logger:           logger,
		interval:         interval,
		tokenRetention:   tokenRetention,
		historyRetention: historyRetention,
		stopCh:           make(chan struct{}),
	}
}

// Start runs sweeps on the configured interval until Stop is called or the
// context is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runSweep(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}

func (cm *CleanupManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unit := cm.uow.New()
	defer unit.Close(sweepCtx)

	now := time.Now().UTC()

	tokensDeleted, err := unit.RefreshTokens().DeleteExpiredBefore(sweepCtx, now.Add(-cm.tokenRetention))
	if err != nil {
		cm.logger.Error("failed to sweep expired refresh tokens", slog.Any("error", err))
	}

	historyDeleted, err := unit.LoginHistory().DeleteBefore(sweepCtx, now.Add(-cm.historyRetention))
	if err != nil {
		cm.logger.Error("failed to sweep login history", slog.Any("error", err))
	}

	if tokensDeleted > 0 || historyDeleted > 0 {
		cm.logger.Info("retention sweep completed",
			slog.Int64("tokens_deleted", tokensDeleted),
			slog.Int64("history_deleted", historyDeleted),
		)
	}
}
