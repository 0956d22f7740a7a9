package jobstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/ffgo/internal/domain"
)

type fakePresetLookup map[string]domain.Preset

func (f fakePresetLookup) Get(id string) (domain.Preset, bool) {
	p, ok := f[id]
	return p, ok
}

func TestEnqueueAssignsAscendingIDsAndFIFOOrder(t *testing.T) {
	s := New()
	a := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	b := s.Enqueue("b.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	c := s.Enqueue("c.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, uint64(2), b.ID)
	assert.Equal(t, uint64(3), c.ID)

	first, ok := s.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, a.ID, first.ID, "jobs must be claimed in FIFO enqueue order")
	assert.Equal(t, domain.StatusProcessing, first.Status)
}

func TestEnqueueDerivesCompressedOutputPath(t *testing.T) {
	s := New()
	j := s.Enqueue("/movies/foo.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	assert.Equal(t, "/movies/foo.compressed.mkv", j.OutputPath)
}

func TestCancelBeforeProcessingRemovesFromQueueImmediately(t *testing.T) {
	s := New()
	j := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	ok := s.Cancel(j.ID)
	require.True(t, ok)

	got, _ := s.Job(j.ID)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	snap := s.Snapshot()
	require.Len(t, snap.Jobs, 1)
	assert.Nil(t, snap.Jobs[0].QueueOrder, "cancelled job must no longer occupy a queue slot")
}

func TestCancelWhileProcessingOnlyRequestsCancellation(t *testing.T) {
	s := New()
	j := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	_, _ = s.ClaimNext()

	ok := s.Cancel(j.ID)
	require.True(t, ok)

	got, _ := s.Job(j.ID)
	assert.Equal(t, domain.StatusProcessing, got.Status, "status transitions only happen via FinishCancellation")
	assert.True(t, s.CancelRequested(j.ID))
}

func TestCancelTerminalJobFails(t *testing.T) {
	s := New()
	j := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	s.Mutate(j.ID, func(job *domain.Job) { job.Status = domain.StatusCompleted })

	assert.False(t, s.Cancel(j.ID))
}

func TestWaitOnlyValidWhileProcessing(t *testing.T) {
	s := New()
	j := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	assert.False(t, s.Wait(j.ID), "wait before processing must be rejected")

	_, _ = s.ClaimNext()
	assert.True(t, s.Wait(j.ID))
	assert.True(t, s.WaitRequested(j.ID))
}

func TestFinishWaitTransitionsToPausedWithMetadata(t *testing.T) {
	s := New()
	j := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	_, _ = s.ClaimNext()
	s.Wait(j.ID)

	meta := domain.WaitMetadata{LastProgressPercent: 42, ProcessedSeconds: 10, TempOutputPath: "/tmp/a.tmp"}
	s.FinishWait(j.ID, meta)

	got, _ := s.Job(j.ID)
	assert.Equal(t, domain.StatusPaused, got.Status)
	require.NotNil(t, got.WaitMetadata)
	assert.Equal(t, meta, *got.WaitMetadata)
	assert.False(t, s.WaitRequested(j.ID), "wait request must be cleared on finish")
}

func TestResumeOnlyValidFromPaused(t *testing.T) {
	s := New()
	j := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	assert.False(t, s.Resume(j.ID), "resume on a waiting job must be rejected")

	_, _ = s.ClaimNext()
	s.Wait(j.ID)
	s.FinishWait(j.ID, domain.WaitMetadata{})

	assert.True(t, s.Resume(j.ID))
	got, _ := s.Job(j.ID)
	assert.Equal(t, domain.StatusWaiting, got.Status)

	next, ok := s.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, j.ID, next.ID, "resumed job must re-enter the waiting queue")
}

func TestRestartTerminalStatuses(t *testing.T) {
	s := New()

	completed := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	s.Mutate(completed.ID, func(j *domain.Job) { j.Status = domain.StatusCompleted })
	assert.False(t, s.Restart(completed.ID), "completed jobs cannot be restarted")

	skipped := s.Enqueue("b.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	s.Mutate(skipped.ID, func(j *domain.Job) { j.Status = domain.StatusSkipped })
	assert.False(t, s.Restart(skipped.ID), "skipped jobs cannot be restarted")

	failed := s.Enqueue("c.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	s.Mutate(failed.ID, func(j *domain.Job) {
		j.Status = domain.StatusFailed
		j.FailureReason = "boom"
		j.Progress = 55
	})
	require.True(t, s.Restart(failed.ID))
	got, _ := s.Job(failed.ID)
	assert.Equal(t, domain.StatusWaiting, got.Status)
	assert.Empty(t, got.FailureReason)
	assert.Zero(t, got.Progress)
}

func TestRestartWhileProcessingRequestsCancelAndRestart(t *testing.T) {
	s := New()
	j := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	_, _ = s.ClaimNext()

	require.True(t, s.Restart(j.ID))
	assert.True(t, s.CancelRequested(j.ID))

	s.FinishCancellation(j.ID, "restarting")
	got, _ := s.Job(j.ID)
	assert.Equal(t, domain.StatusWaiting, got.Status, "FinishCancellation must honor a pending restart request")
}

func TestReorderWaitingPreservesUnlistedTrailingOrder(t *testing.T) {
	s := New()
	a := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	b := s.Enqueue("b.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	c := s.Enqueue("c.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	changed := s.ReorderWaiting([]uint64{c.ID, a.ID})
	assert.True(t, changed)

	snap := s.Snapshot()
	order := queueOrderOf(snap)
	assert.Equal(t, []uint64{c.ID, a.ID, b.ID}, order, "jobs not named in the reorder request stay appended in prior order")
}

func TestReorderWaitingIgnoresUnknownIDs(t *testing.T) {
	s := New()
	a := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	b := s.Enqueue("b.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	changed := s.ReorderWaiting([]uint64{999, b.ID, a.ID})
	assert.True(t, changed)

	order := queueOrderOf(s.Snapshot())
	assert.Equal(t, []uint64{b.ID, a.ID}, order)
}

func TestReorderWaitingNoopReturnsFalse(t *testing.T) {
	s := New()
	a := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	b := s.Enqueue("b.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	changed := s.ReorderWaiting([]uint64{a.ID, b.ID})
	assert.False(t, changed, "reordering into the existing order must report no change")
}

func TestReserveOutputPathIsAtomicAcrossCandidates(t *testing.T) {
	s := New()
	chosen, ok := s.ReserveOutputPath([]string{"/out/a.mkv", "/out/a-1.mkv"}, func(string) bool { return false })
	require.True(t, ok)
	assert.Equal(t, "/out/a.mkv", chosen)

	chosen2, ok := s.ReserveOutputPath([]string{"/out/a.mkv", "/out/a-1.mkv"}, func(string) bool { return false })
	require.True(t, ok)
	assert.Equal(t, "/out/a-1.mkv", chosen2, "an already-reserved candidate must be skipped")
}

func TestReserveOutputPathExhaustsCandidates(t *testing.T) {
	s := New()
	s.RegisterKnownOutput("/out/a.mkv")
	_, ok := s.ReserveOutputPath([]string{"/out/a.mkv"}, func(string) bool { return true })
	assert.False(t, ok)
}

func TestRecordBatchCompletionTransitionsOnceProcessedMeetsCandidates(t *testing.T) {
	s := New()
	s.RegisterBatch(&domain.SmartScanBatch{ID: "b1", Status: domain.ScanStatusRunning, Candidates: 2})

	s.RecordBatchCompletion("b1", time.Now().UnixMilli())
	b, ok := s.Batch("b1")
	require.True(t, ok)
	assert.Equal(t, 1, b.Processed)
	assert.Equal(t, domain.ScanStatusRunning, b.Status)

	s.RecordBatchCompletion("b1", time.Now().UnixMilli())
	b, _ = s.Batch("b1")
	assert.Equal(t, 2, b.Processed)
	assert.Equal(t, domain.ScanStatusCompleted, b.Status)
	assert.NotZero(t, b.EndTimeMs)
}

func TestEnqueueExistingAssignsIDWhenZero(t *testing.T) {
	s := New()
	first := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	job := &domain.Job{SourcePath: "b.mkv", Status: domain.StatusWaiting}
	s.EnqueueExisting(job)

	assert.Greater(t, job.ID, first.ID)

	next, ok := s.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, first.ID, next.ID, "FIFO order must hold across manual and Enqueue-assigned ids")
}

func TestIsKnownOutputTracksRegisteredPaths(t *testing.T) {
	s := New()
	assert.False(t, s.IsKnownOutput("/out/a.mkv"))
	s.RegisterKnownOutput("/out/a.mkv")
	assert.True(t, s.IsKnownOutput("/out/a.mkv"))
}

func TestAddListenerReceivesSnapshotAfterEnqueue(t *testing.T) {
	s := New()

	var received []domain.QueueState
	s.AddListener(func(state domain.QueueState) {
		received = append(received, state)
	})

	s.Enqueue("/in/a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	require.Len(t, received, 1)
	require.Len(t, received[0].Jobs, 1)
	assert.Equal(t, "/in/a.mkv", received[0].Jobs[0].SourcePath)
}

func TestAddListenerFansOutToMultipleListeners(t *testing.T) {
	s := New()

	var calls1, calls2 int
	s.AddListener(func(domain.QueueState) { calls1++ })
	s.AddListener(func(domain.QueueState) { calls2++ })

	s.Enqueue("/in/a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")
	s.Enqueue("/in/b.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	assert.Equal(t, 2, calls1)
	assert.Equal(t, 2, calls2)
}

func TestBroadcastInvokesListenersWithoutStateChange(t *testing.T) {
	s := New()
	s.Enqueue("/in/a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 100, "h264", "p1")

	calls := 0
	s.AddListener(func(domain.QueueState) { calls++ })

	s.Broadcast()

	assert.Equal(t, 1, calls)
}

func TestEnqueueOverridesSizeHintWithRealFileSize(t *testing.T) {
	s := New()
	path := filepath.Join(t.TempDir(), "a.mkv")
	require.NoError(t, os.WriteFile(path, make([]byte, 5*1024*1024), 0o644))

	j := s.Enqueue(path, domain.JobTypeVideo, domain.JobSourceUser, 1, "h264", "p1")

	assert.InDelta(t, 5, j.OriginalSizeMB, 0.5)
}

func TestEnqueueKeepsSizeHintWhenSourceUnreadable(t *testing.T) {
	s := New()
	j := s.Enqueue("/does/not/exist.mkv", domain.JobTypeVideo, domain.JobSourceUser, 42, "h264", "p1")
	assert.Equal(t, float64(42), j.OriginalSizeMB)
}

func TestEnqueuePopulatesEstimatedSecondsFromPresetLookup(t *testing.T) {
	s := New()
	s.SetPresetLookup(fakePresetLookup{
		"p1": domain.Preset{
			ID: "p1",
			Stats: domain.PresetStats{
				TotalInputSizeMB: 100,
				TotalTimeSeconds: 200,
			},
		},
	})

	j := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 50, "h264", "p1")

	require.NotNil(t, j.EstimatedSeconds)
	assert.InDelta(t, 100, *j.EstimatedSeconds, 0.01)
}

func TestEnqueueLeavesEstimatedSecondsNilWithoutPresetLookup(t *testing.T) {
	s := New()
	j := s.Enqueue("a.mkv", domain.JobTypeVideo, domain.JobSourceUser, 50, "h264", "p1")
	assert.Nil(t, j.EstimatedSeconds)
}

func queueOrderOf(state domain.QueueState) []uint64 {
	type entry struct {
		id  uint64
		idx int
	}
	var entries []entry
	for _, j := range state.Jobs {
		if j.QueueOrder != nil {
			entries = append(entries, entry{j.ID, *j.QueueOrder})
		}
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].idx < entries[i].idx {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	ids := make([]uint64, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}
