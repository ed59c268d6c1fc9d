package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"veil/pkg/domain"
)

// cleanupScheduler drives the recurring retention job. It is independent of
// the request path and must be stoppable via Vault.Dispose so timers do not
// leak across process lifetimes.
type cleanupScheduler struct {
	vault    *Vault
	interval time.Duration
	cron     *cron.Cron
	stopOnce sync.Once
}

func newCleanupScheduler(v *Vault, interval time.Duration) *cleanupScheduler {
	return &cleanupScheduler{
		vault:    v,
		interval: interval,
		cron:     cron.New(),
	}
}

func (s *cleanupScheduler) start() {
	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.vault.ClearExpiredData(ctx); err != nil {
			s.vault.log.Error("scheduled cleanup failed", "error", err)
		}
	})
	if err != nil {
		s.vault.log.Error("cleanup schedule rejected", "spec", spec, "error", err)
		return
	}
	s.cron.Start()
}

func (s *cleanupScheduler) stop() {
	s.stopOnce.Do(func() {
		s.cron.Stop()
	})
}

// ClearExpiredData is the sole authority for physical deletion of expired
// records. It re-applies pending erasure intents, rewrites cohort envelopes
// without expired assignments, prunes aged API log entries, and stamps
// last_cleanup. Read-time expiry filtering elsewhere is view-only.
func (v *Vault) ClearExpiredData(ctx context.Context) error {
	start := time.Now()

	if err := v.resumePendingIntents(ctx); err != nil {
		v.log.Warn("pending erasure intents not fully resumed", "error", err)
	}

	if err := v.purgeExpiredCohorts(ctx, start); err != nil {
		return err
	}
	if err := v.pruneAPILogs(ctx, start); err != nil {
		return err
	}

	stamp := cleanupStamp{SchemaVersion: schemaVersionCurrent, Timestamp: start}
	if err := v.put(ctx, keyLastCleanup, stamp, "clear expired data"); err != nil {
		return err
	}

	if v.metrics != nil {
		v.metrics.CleanupRuns.Inc()
		v.metrics.CleanupDuration.Observe(time.Since(start).Seconds())
	}
	v.log.Debug("retention cleanup completed", "took", time.Since(start))
	return nil
}

// resumePendingIntents re-applies erasure cascades interrupted by a crash.
// Failures on one user do not block the rest.
func (v *Vault) resumePendingIntents(ctx context.Context) error {
	intents, err := v.PendingIntents(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, intent := range intents {
		if err := v.ApplyErasure(ctx, intent); err != nil {
			v.log.Error("erasure intent resume failed", "user", intent.UserID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (v *Vault) purgeExpiredCohorts(ctx context.Context, now time.Time) error {
	keys, err := v.provider.Keys(ctx, prefixCohortData)
	if err != nil {
		return fmt.Errorf("list cohort keys: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, key := range keys {
		g.Go(func() error {
			mu := v.lockKey(key)
			mu.Lock()
			defer mu.Unlock()

			var env cohortEnvelope
			ok, err := v.get(gctx, key, &env, "purge expired cohorts")
			if err != nil || !ok {
				return err
			}
			kept := make([]domain.CohortAssignment, 0, len(env.Cohorts))
			for _, c := range env.Cohorts {
				if !c.Expired(now) {
					kept = append(kept, c)
				}
			}
			if len(kept) == len(env.Cohorts) {
				return nil
			}
			env.SchemaVersion = schemaVersionCurrent
			env.Cohorts = kept
			return v.put(gctx, key, env, "purge expired cohorts")
		})
	}
	return g.Wait()
}

// pruneAPILogs drops entries older than the retention window and removes
// buckets that end up empty.
func (v *Vault) pruneAPILogs(ctx context.Context, now time.Time) error {
	keys, err := v.provider.Keys(ctx, prefixAPILog)
	if err != nil {
		return fmt.Errorf("list api log buckets: %w", err)
	}
	cutoff := now.Add(-apiLogRetention)
	for _, key := range keys {
		if err := v.pruneAPILogBucket(ctx, key, cutoff); err != nil {
			return err
		}
	}
	return nil
}

// pruneAPILogBucket holds the bucket's key lock across the read-prune-write
// so an append landing mid-rewrite is not dropped.
func (v *Vault) pruneAPILogBucket(ctx context.Context, key string, cutoff time.Time) error {
	mu := v.lockKey(key)
	mu.Lock()
	defer mu.Unlock()

	var bucket logBucket
	ok, err := v.get(ctx, key, &bucket, "prune api logs")
	if err != nil || !ok {
		return err
	}
	kept := bucket.Entries[:0]
	for _, e := range bucket.Entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(bucket.Entries) {
		return nil
	}
	if len(kept) == 0 {
		return v.remove(ctx, key, "prune api logs")
	}
	bucket.SchemaVersion = schemaVersionCurrent
	bucket.Entries = kept
	return v.put(ctx, key, bucket, "prune api logs")
}
