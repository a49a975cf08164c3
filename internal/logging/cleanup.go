package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/glowsync/glowsync-backend/internal/models"
	"gorm.io/gorm"
)

// Retention deletes system_logs rows older than a fixed age.
type Retention struct {
	db     *gorm.DB
	maxAge time.Duration
	now    func() time.Time
}

func NewRetention(db *gorm.DB, maxAge time.Duration) *Retention {
	return &Retention{db: db, maxAge: maxAge, now: time.Now}
}

// Sweep removes expired rows once and reports how many were deleted.
func (r *Retention) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().Add(-r.maxAge)
	result := r.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}

// Run sweeps every interval until ctx is cancelled.
func (r *Retention) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deleted, err := r.Sweep(ctx)
			if err != nil {
				slog.Error("log cleanup failed", "action", "log_cleanup", "error", err)
			} else if deleted > 0 {
				slog.Info("log cleanup completed", "deleted", deleted)
			}
		case <-ctx.Done():
			return
		}
	}
}
