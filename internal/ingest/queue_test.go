package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mnemo/internal/ai/mock"
	"github.com/starford/mnemo/internal/testutil"
)

func TestQueueRunsIngestion(t *testing.T) {
	st := testutil.TestStore(t)
	n := testutil.SeedNote(t, st, "u1", "", "queued text")

	q, err := NewQueue(NewService(st, mock.NewProvider()), 2, 4)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(ctx, n.ID, "u1"))
	cancel() // the job must not inherit the request's cancellation

	assert.Eventually(t, func() bool {
		got, err := st.GetNote(context.Background(), n.ID)
		return err == nil && got.Summary == "A short summary."
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, q.Close(5*time.Second))
}
