package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBeginStartClaimsRecord(t *testing.T) {
	r := New()

	ok, depOK := r.BeginStart(ServiceNode)
	require.True(t, ok)
	require.True(t, depOK)

	// In-flight start counts as active.
	require.True(t, r.Running(ServiceNode))
	ok, _ = r.BeginStart(ServiceNode)
	require.False(t, ok)

	r.CommitStart(ServiceNode, 100, nil, nil)
	rec := r.Get(ServiceNode)
	require.True(t, rec.Running)
	require.Equal(t, 100, rec.PID)
}

func TestBeginStartDependency(t *testing.T) {
	r := New()

	ok, depOK := r.BeginStart(ServiceMiner)
	require.True(t, ok)
	require.False(t, depOK)
	// A failed dependency check leaves no claim behind.
	r.AbortStart(ServiceMiner)
	require.False(t, r.Running(ServiceMiner))

	r.BeginStart(ServiceNode)
	r.CommitStart(ServiceNode, 1, nil, nil)

	ok, depOK = r.BeginStart(ServiceMiner)
	require.True(t, ok)
	require.True(t, depOK)
}

func TestAbortStartReleasesClaim(t *testing.T) {
	r := New()
	ok, _ := r.BeginStart(ServiceNode)
	require.True(t, ok)

	r.AbortStart(ServiceNode)
	require.False(t, r.Running(ServiceNode))
	ok, _ = r.BeginStart(ServiceNode)
	require.True(t, ok)
}

func TestEndRunningReturnsPreviousRecord(t *testing.T) {
	r := New()
	r.BeginStart(ServiceNode)
	r.CommitStart(ServiceNode, 42, nil, "cfg")

	rec, was := r.EndRunning(ServiceNode)
	require.True(t, was)
	require.Equal(t, 42, rec.PID)
	require.Equal(t, "cfg", rec.Config)

	_, was = r.EndRunning(ServiceNode)
	require.False(t, was)

	// Config snapshot survives for later operations like reset-data.
	require.Equal(t, "cfg", r.Get(ServiceNode).Config)
}

func TestClearExitedGuardsPID(t *testing.T) {
	r := New()
	r.BeginStart(ServiceNode)
	r.CommitStart(ServiceNode, 10, nil, nil)

	// Stale monitor from a previous run must not clobber the record.
	require.False(t, r.ClearExited(ServiceNode, 9))
	require.True(t, r.Running(ServiceNode))

	require.True(t, r.ClearExited(ServiceNode, 10))
	require.False(t, r.Running(ServiceNode))
	require.False(t, r.ClearExited(ServiceNode, 10))
}

func TestClearServer(t *testing.T) {
	r := New()
	cancelled := false
	r.BeginStart(ServiceGateway)
	gen := r.CommitStart(ServiceGateway, 0, context.CancelFunc(func() { cancelled = true }), nil)

	require.True(t, r.ClearServer(ServiceGateway, gen))
	require.False(t, r.Running(ServiceGateway))
	require.False(t, cancelled)
	require.Nil(t, r.Get(ServiceGateway).Shutdown)
}

func TestClearServerGuardsGeneration(t *testing.T) {
	r := New()
	r.BeginStart(ServiceGateway)
	first := r.CommitStart(ServiceGateway, 0, func() {}, nil)

	// Stop and restart: the first incarnation's serve goroutine has not
	// finished yet when the second one commits.
	_, was := r.EndRunning(ServiceGateway)
	require.True(t, was)
	ok, _ := r.BeginStart(ServiceGateway)
	require.True(t, ok)
	secondCancelled := false
	second := r.CommitStart(ServiceGateway, 0, func() { secondCancelled = true }, nil)
	require.NotEqual(t, first, second)

	// The stale goroutine must not clobber the new incarnation's record.
	require.False(t, r.ClearServer(ServiceGateway, first))
	require.True(t, r.Running(ServiceGateway))
	require.NotNil(t, r.Get(ServiceGateway).Shutdown)
	require.False(t, secondCancelled)

	require.True(t, r.ClearServer(ServiceGateway, second))
	require.False(t, r.Running(ServiceGateway))
}

func TestConcurrentBeginStartSingleWinner(t *testing.T) {
	r := New()

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := r.BeginStart(ServiceNode); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	require.Equal(t, 1, count)
}

func TestSnapshotOmitsShutdown(t *testing.T) {
	r := New()
	r.BeginStart(ServiceGateway)
	r.CommitStart(ServiceGateway, 0, func() {}, nil)

	snap := r.Snapshot()
	require.Len(t, snap, len(All()))
	require.True(t, snap[ServiceGateway].Running)
	require.Nil(t, snap[ServiceGateway].Shutdown)
}
