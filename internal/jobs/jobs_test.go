package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semaphore/gradebook/internal/model"
	"semaphore/gradebook/internal/session"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepExpiredRemovesExpiredSessions(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "short", model.Identity{Role: model.RoleStudent}, time.Minute))
	require.NoError(t, store.Save(ctx, "long", model.Identity{Role: model.RoleStudent}, time.Hour))

	assert.Equal(t, 1, sweepExpired(store, time.Now().Add(10*time.Minute), discardLogger()))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, sweepExpired(store, time.Now().Add(10*time.Minute), discardLogger()))
}

func TestProbeOnce(t *testing.T) {
	logger := discardLogger()
	assert.True(t, probeOnce(context.Background(), fakePinger{}, time.Second, logger))
	assert.False(t, probeOnce(context.Background(), fakePinger{err: errors.New("down")}, time.Second, logger))
}

func TestStartHealthProbeJobReportsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	reports := []bool{}
	report := func(serving bool) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, serving)
	}

	StartHealthProbeJob(ctx, time.Hour, fakePinger{err: errors.New("down")}, report, discardLogger())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false}, reports)
}
