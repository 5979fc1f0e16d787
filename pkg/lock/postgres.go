package lock

import (
	"context"
	"fmt"

	"golang-stock-trader/pkg/logger"

	"gorm.io/gorm"
)

type postgresLocker struct {
	db     *gorm.DB
	opts   Options
	logger *logger.Logger
}

// NewPostgresLocker returns a Locker backed by session-level Postgres
// advisory locks. The lock lives on a dedicated pooled connection for the
// duration of fn.
func NewPostgresLocker(db *gorm.DB, opts Options, log *logger.Logger) Locker {
	return &postgresLocker{db: db, opts: opts, logger: log}
}

func (l *postgresLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	key := Key(name)

	return l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		err := acquire(ctx, name, l.opts, func(ctx context.Context) (bool, error) {
			var locked bool
			if err := conn.WithContext(ctx).Raw("SELECT pg_try_advisory_lock(?)", key).Scan(&locked).Error; err != nil {
				return false, err
			}
			return locked, nil
		})
		if err != nil {
			return err
		}
		l.logger.Debug("Lock acquired", logger.StringField("lock", name), logger.Field("key", key))

		defer release(ctx, l.logger, name, func(ctx context.Context) error {
			var unlocked bool
			if err := conn.WithContext(ctx).Raw("SELECT pg_advisory_unlock(?)", key).Scan(&unlocked).Error; err != nil {
				return err
			}
			if !unlocked {
				return fmt.Errorf("advisory lock %d was not held by this session", key)
			}
			return nil
		})

		return fn(ctx)
	})
}
