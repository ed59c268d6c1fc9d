package consent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veil/pkg/domain-errors"
)

func TestUserTx_CancelledContext(t *testing.T) {
	var tx userTx
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tx.run(ctx, "user-1", func(context.Context) error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestUserTx_AppliesDefaultTimeout(t *testing.T) {
	var tx userTx
	err := tx.run(context.Background(), "user-1", func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok, "tx context must carry a deadline")
		assert.False(t, deadline.IsZero())
		return nil
	})
	require.NoError(t, err)
}

func TestHashUserID_IsStable(t *testing.T) {
	assert.Equal(t, hashUserID("user-1"), hashUserID("user-1"))
	assert.NotEqual(t, hashUserID("user-1"), hashUserID("user-2"))
}
