package jobs

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSweeper struct {
	calls   int32
	evicted int
	err     error
}

func (f *fakeSweeper) SweepRetention(ctx context.Context) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep called without deadline")
	}
	return f.evicted, f.err
}

type fakePurger struct {
	purged int64
	err    error
}

func (f *fakePurger) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return f.purged, f.err
}

func TestScheduler_AddAndRemoveJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("a", "0 */30 * * * *", func() {}))
	require.NoError(t, s.AddJob("b", "@every 1h", func() {}))

	err := s.AddJob("a", "@hourly", func() {})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob("bad", "not a cron expression", func() {})
	assert.Error(t, err)

	names := s.JobNames()
	sort.Strings(names)
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.JobNames())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var runs int32
	require.NoError(t, s.AddJob("tick", "* * * * * *", func() { atomic.AddInt32(&runs, 1) }))

	s.Start()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}

func TestRetentionSweepJob_Run(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sweeper := &fakeSweeper{evicted: 3}

	NewRetentionSweepJob(sweeper, zap.New(core), time.Minute).Run()

	assert.Equal(t, int32(1), sweeper.calls)
	entries := logs.FilterMessage("retention sweep completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["evicted"])
}

func TestRetentionSweepJob_RunLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sweeper := &fakeSweeper{err: errors.New("database unavailable")}

	NewRetentionSweepJob(sweeper, zap.New(core), time.Minute).Run()

	assert.Equal(t, 1, logs.FilterMessage("retention sweep failed").Len())
	assert.Zero(t, logs.FilterMessage("retention sweep completed").Len())
}

func TestSessionPurgeJob_Run(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	NewSessionPurgeJob(&fakePurger{purged: 2}, zap.New(core), time.Minute).Run()
	NewSessionPurgeJob(&fakePurger{}, zap.New(core), time.Minute).Run()
	NewSessionPurgeJob(&fakePurger{err: errors.New("boom")}, zap.New(core), time.Minute).Run()

	assert.Equal(t, 1, logs.FilterMessage("expired sessions purged").Len())
	assert.Equal(t, 1, logs.FilterMessage("session purge failed").Len())
}

func TestRegisterJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	sweeper := &fakeSweeper{}

	require.NoError(t, RegisterRetentionSweepJob(s, sweeper, zap.NewNop(), "0 */30 * * * *", true))
	require.NoError(t, RegisterSessionPurgeJob(s, &fakePurger{}, zap.NewNop(), "0 0 * * * *"))

	names := s.JobNames()
	sort.Strings(names)
	assert.Equal(t, []string{RetentionSweepJobName, SessionPurgeJobName}, names)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&sweeper.calls) == 1 }, time.Second, 10*time.Millisecond)
}
