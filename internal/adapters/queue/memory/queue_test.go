package memory

import (
	"context"
	"testing"
	"time"

	"treatment-plans/internal/domain/prescriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, prescriptions.Job{UploadID: "a"}))
	require.NoError(t, q.Enqueue(ctx, prescriptions.Job{UploadID: "b"}))
	assert.ErrorIs(t, q.Enqueue(ctx, prescriptions.Job{UploadID: "c"}), ErrFull)
	assert.Equal(t, 2, q.Len())

	j, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", j.UploadID)
	j, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", j.UploadID)
}

func TestQueue_DequeueHonorsContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
