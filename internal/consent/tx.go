package consent

import (
	"context"
	"sync"
	"time"

	"veil/pkg/domain"
	dErrors "veil/pkg/domain-errors"
)

// Consent history updates are read-modify-write against a single key, so
// concurrent calls for the same user race. userTx serializes them with
// sharded mutexes: operations are distributed across N shards by a hash of
// the user ID, so unrelated users do not contend on one lock.
const numTxShards = 64

// defaultTxTimeout bounds how long one serialized consent mutation may run.
const defaultTxTimeout = 5 * time.Second

type userTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func (t *userTx) run(ctx context.Context, userID domain.UserID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "consent tx aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashUserID(userID) % numTxShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "consent tx aborted: context cancelled")
	}

	return fn(ctx)
}

// hashUserID uses FNV-1a for even shard distribution.
func hashUserID(userID domain.UserID) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	s := userID.String()
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
