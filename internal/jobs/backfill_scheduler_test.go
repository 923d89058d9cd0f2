package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/bookshop-backend/internal/services"
)

type countingBackfiller struct {
	calls atomic.Int32
	err   error
}

func (b *countingBackfiller) BackfillMissingEntitlements(ctx context.Context) (*services.BackfillReport, error) {
	b.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("backfill run without a deadline")
	}
	if b.err != nil {
		return nil, b.err
	}
	return &services.BackfillReport{Scanned: 3, Issued: 1, Skipped: 1, Failed: 1}, nil
}

func TestRunNow(t *testing.T) {
	b := &countingBackfiller{}
	s := NewBackfillScheduler(b, "@every 1h")

	s.RunNow()
	assert.Equal(t, int32(1), b.calls.Load())

	b.err = errors.New("db down")
	s.RunNow()
	assert.Equal(t, int32(2), b.calls.Load())
}

func TestStartStop(t *testing.T) {
	s := NewBackfillScheduler(&countingBackfiller{}, "@every 1h")

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	// Stopping twice returns an already-done context.
	select {
	case <-s.Stop().Done():
	default:
		t.Fatal("second stop should be done immediately")
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := NewBackfillScheduler(&countingBackfiller{}, "every so often")
	assert.Error(t, s.Start())
}

func TestEmptyScheduleDisablesJob(t *testing.T) {
	b := &countingBackfiller{}
	s := NewBackfillScheduler(b, "")

	require.NoError(t, s.Start())
	assert.Empty(t, s.cron.Entries())
	<-s.Stop().Done()
	assert.Zero(t, b.calls.Load())
}

func TestScheduledRunFires(t *testing.T) {
	b := &countingBackfiller{}
	s := NewBackfillScheduler(b, "@every 1s")
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return b.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunNowLogsFullReport(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(level)

	NewBackfillScheduler(&countingBackfiller{}, "").RunNow()

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, 3, entry.Data["scanned"])
	assert.Equal(t, 1, entry.Data["issued"])
	assert.Equal(t, 1, entry.Data["skipped"])
	assert.Equal(t, 1, entry.Data["failed"])
}
