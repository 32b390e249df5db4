package ha

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"gorm.io/gorm"
)

// MigrationLocker serializes schema migration across server replicas so
// that concurrent AutoMigrate calls never race on DDL.
type MigrationLocker interface {
	// WithLock runs fn while holding the migration lock, blocking until
	// the lock is acquired and releasing it when fn returns.
	WithLock(ctx context.Context, fn func() error) error
}

const lockKey = "validation-server-migration"

// NewMigrationLocker picks a locking strategy for the database dialect:
// PostgreSQL gets a session advisory lock, everything else a lock-row
// table. Without a database the locker is a passthrough.
func NewMigrationLocker(db *gorm.DB) MigrationLocker {
	switch {
	case db == nil:
		return passthroughLocker{}
	case db.Dialector.Name() == "postgres":
		return &advisoryLocker{db: db, key: int64(crc32.ChecksumIEEE([]byte(lockKey)))}
	default:
		locker := &tableLocker{db: db}
		// Create the lock table up front so concurrent first callers
		// never race on its existence.
		_ = db.AutoMigrate(&migrationLockRecord{})
		return locker
	}
}

type passthroughLocker struct{}

func (passthroughLocker) WithLock(_ context.Context, fn func() error) error { return fn() }

// advisoryLocker holds a PostgreSQL advisory lock for the duration of fn.
type advisoryLocker struct {
	db  *gorm.DB
	key int64
}

func (l *advisoryLocker) WithLock(ctx context.Context, fn func() error) error {
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", l.key).Error; err != nil {
		return fmt.Errorf("acquire migration advisory lock: %w", err)
	}
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", l.key).Error
	}()
	return fn()
}

// migrationLockRecord is the single lock row used on dialects without
// advisory locks. Presence of the row means the lock is held.
type migrationLockRecord struct {
	ID       string    `gorm:"primaryKey;column:id"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (migrationLockRecord) TableName() string { return "migration_lock" }

// tableLocker implements the lock with insert-or-fail semantics on a lock
// row. Rows older than staleLockAge count as leftovers of a crashed holder
// and are cleared before each attempt.
type tableLocker struct {
	db *gorm.DB
}

const (
	lockAttempts  = 30
	lockRetryWait = time.Second
	staleLockAge  = 5 * time.Minute
)

func (l *tableLocker) WithLock(ctx context.Context, fn func() error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.db.Where("id = ?", "migration").Delete(&migrationLockRecord{})
	return fn()
}

func (l *tableLocker) acquire(ctx context.Context) error {
	holder, _ := os.Hostname()
	if holder == "" {
		holder = "unknown"
	}

	var lastErr error
	for attempt := 0; attempt < lockAttempts; attempt++ {
		l.db.WithContext(ctx).
			Where("id = ? AND locked_at < ?", "migration", time.Now().Add(-staleLockAge)).
			Delete(&migrationLockRecord{})

		row := migrationLockRecord{ID: "migration", LockedAt: time.Now(), LockedBy: holder}
		if err := l.db.WithContext(ctx).Create(&row).Error; err == nil {
			return nil
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}
	return fmt.Errorf("acquire migration lock after %d attempts: %w", lockAttempts, lastErr)
}
