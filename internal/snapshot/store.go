package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/health-triage/internal/domain"
	"go.uber.org/zap"
)

// ReloadFunc is called after every rebuild attempt. err is nil on success.
type ReloadFunc func(version string, rules int, err error)

// DefaultRetryBackoff is used when StoreConfig.RetryBackoff is zero.
const DefaultRetryBackoff = 5 * time.Second

// StoreConfig contains configuration for the Store.
type StoreConfig struct {
	// CheckOnRead makes Current compare the source version on every call.
	// When false, only Refresh and Run pick up changes.
	CheckOnRead bool

	// RetryBackoff is how long Current keeps answering from the last outcome
	// after a failed rebuild before it consults the source again. Refresh
	// always retries.
	RetryBackoff time.Duration

	// OnReload is optional.
	OnReload ReloadFunc
}

// Store holds the current snapshot and rebuilds it when the source changes.
// Readers always see a complete snapshot.
type Store struct {
	src          Source
	checkOnRead  bool
	retryBackoff time.Duration
	onReload     ReloadFunc
	logger       *zap.Logger
	now          func() time.Time

	current atomic.Pointer[Snapshot]
	failure atomic.Pointer[reloadFailure]
	mu      sync.Mutex
}

// reloadFailure remembers a failed rebuild until retryAt.
type reloadFailure struct {
	retryAt time.Time
	err     error
}

// NewStore creates a Store over src. Nothing is loaded until the first call
// to Current or Refresh.
func NewStore(src Source, config StoreConfig, logger *zap.Logger) *Store {
	backoff := config.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &Store{
		src:          src,
		checkOnRead:  config.CheckOnRead,
		retryBackoff: backoff,
		onReload:     config.OnReload,
		logger:       logger.Named("snapshot_store"),
		now:          time.Now,
	}
}

// Snapshot returns the last loaded snapshot without consulting the source,
// or nil if nothing has been loaded yet.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Current returns an up-to-date snapshot. If the source changed it is
// rebuilt first. When a rebuild fails the previous snapshot is returned; only
// when none exists does Current fail with domain.ErrConfigUnavailable. After a
// failure the source is not consulted again until the retry backoff passes.
func (s *Store) Current(ctx context.Context) (*Snapshot, error) {
	cur := s.current.Load()
	if cur != nil && !s.checkOnRead {
		return cur, nil
	}
	if f := s.pendingFailure(); f != nil {
		if cur != nil {
			return cur, nil
		}
		return nil, f.err
	}
	if cur != nil {
		v, err := s.src.Version(ctx)
		if err == nil && v == cur.Version() {
			return cur, nil
		}
	}

	snap, err := s.reload(ctx, false)
	if snap != nil {
		return snap, nil
	}
	return nil, err
}

// Refresh rebuilds the snapshot if the source version changed. The previous
// snapshot stays in place when the rebuild fails and the error is returned.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.reload(ctx, true)
	return err
}

// Run refreshes the snapshot every interval until ctx is cancelled. A
// non-positive interval returns immediately.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("snapshot refresh loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("snapshot refresh loop stopped")
			return
		case <-ticker.C:
			// Failures are already logged by reload.
			_ = s.Refresh(ctx)
		}
	}
}

// pendingFailure returns the last failed rebuild while its backoff lasts.
func (s *Store) pendingFailure() *reloadFailure {
	f := s.failure.Load()
	if f == nil || !s.now().Before(f.retryAt) {
		return nil
	}
	return f
}

// reload rebuilds under the mutex. It returns the snapshot now in effect,
// which is the previous one when the rebuild failed. Unless force is set a
// failure still inside its backoff is returned without touching the source.
func (s *Store) reload(ctx context.Context, force bool) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()

	if !force {
		if f := s.pendingFailure(); f != nil {
			return prev, f.err
		}
	}

	// Another caller may have rebuilt while we waited for the lock.
	if prev != nil {
		if v, err := s.src.Version(ctx); err == nil && v == prev.Version() {
			return prev, nil
		}
	}

	snap, err := Build(ctx, s.src)
	if err != nil {
		if !domain.IsConfigUnavailable(err) {
			err = unavailable("reload", err)
		}
		s.failure.Store(&reloadFailure{retryAt: s.now().Add(s.retryBackoff), err: err})
		s.notify("", 0, err)
		if prev != nil {
			s.logger.Warn("snapshot rebuild failed, serving previous snapshot",
				zap.String("version", prev.Version()),
				zap.Error(err),
			)
			return prev, err
		}
		s.logger.Error("snapshot rebuild failed, no configuration available", zap.Error(err))
		return nil, err
	}

	s.failure.Store(nil)
	s.current.Store(snap)
	s.notify(snap.Version(), len(snap.Rules()), nil)

	fields := []zap.Field{
		zap.String("version", snap.Version()),
		zap.Int("rules", len(snap.Rules())),
	}
	if prev != nil {
		fields = append(fields, zap.String("previous_version", prev.Version()))
	}
	s.logger.Info("snapshot loaded", fields...)

	if unresolved := snap.UnresolvedDietTags(); len(unresolved) > 0 {
		s.logger.Warn("rules reference unknown diet tags, they will be dropped",
			zap.Strings("diet_tags", unresolved),
		)
	}

	return snap, nil
}

func (s *Store) notify(version string, rules int, err error) {
	if s.onReload != nil {
		s.onReload(version, rules, err)
	}
}
