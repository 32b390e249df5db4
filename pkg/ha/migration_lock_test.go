package ha

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// openSharedDB opens an in-memory database all goroutines of a test share.
func openSharedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test DB: %v", err)
	}
	return db
}

func lockRowCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	db.Model(&migrationLockRecord{}).Count(&count)
	return count
}

func TestNewMigrationLocker_NilDBPassesThrough(t *testing.T) {
	ran := false
	err := NewMigrationLocker(nil).WithLock(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("critical section did not run")
	}
}

func TestTableLocker_AcquireAndRelease(t *testing.T) {
	db := openSharedDB(t)
	locker := NewMigrationLocker(db)

	ran := false
	if err := locker.WithLock(context.Background(), func() error {
		ran = true
		if n := lockRowCount(t, db); n != 1 {
			t.Errorf("expected 1 lock row while held, got %d", n)
		}
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("critical section did not run")
	}
	if n := lockRowCount(t, db); n != 0 {
		t.Errorf("expected lock row gone after release, got %d", n)
	}
}

func TestTableLocker_ReleasesOnError(t *testing.T) {
	db := openSharedDB(t)
	locker := NewMigrationLocker(db)

	sentinel := errors.New("migration failed")
	err := locker.WithLock(context.Background(), func() error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want %v", err, sentinel)
	}
	if n := lockRowCount(t, db); n != 0 {
		t.Errorf("expected lock row gone after error, got %d", n)
	}
}

func TestTableLocker_Serializes(t *testing.T) {
	db := openSharedDB(t)
	locker := NewMigrationLocker(db)

	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithLock(context.Background(), func() error {
				cur := inside.Add(1)
				for {
					prev := peak.Load()
					if cur <= prev || peak.CompareAndSwap(prev, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > 1 {
		t.Errorf("observed %d holders at once, want 1", peak.Load())
	}
}

func TestTableLocker_ContextCancellation(t *testing.T) {
	db := openSharedDB(t)
	locker := NewMigrationLocker(db)

	err := locker.WithLock(context.Background(), func() error {
		// While held, a second acquisition with a dead context must fail
		// instead of running.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := locker.WithLock(ctx, func() error {
			t.Error("lock acquired with cancelled context")
			return nil
		}); err == nil {
			t.Error("expected context cancellation error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer WithLock error: %v", err)
	}
}
