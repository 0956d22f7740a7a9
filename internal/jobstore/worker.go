package jobstore

import (
	"time"

	"github.com/five82/ffgo/internal/domain"
)

// ClaimNext blocks on the condition variable while the queue is empty,
// pops the head id, and transitions the job to processing, preserving
// progress if resumable. ok is always true for this implementation,
// which has no shutdown path short of process exit.
func (s *Store) ClaimNext() (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 {
		s.cond.Wait()
	}

	id := s.queue[0]
	s.queue = s.queue[1:]

	job := s.jobs[id]
	if job.StartTime == nil {
		now := time.Now()
		job.StartTime = &now
	}
	job.Status = domain.StatusProcessing
	s.active[id] = true

	return job, true
}

// ReleaseActive marks id as no longer processing. Called by the
// scheduler once the supervisor returns, regardless of outcome.
func (s *Store) ReleaseActive(id uint64) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// CancelRequested reports and does not clear the cancellation-request flag.
func (s *Store) CancelRequested(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRequests[id]
}

// WaitRequested reports the wait-request flag.
func (s *Store) WaitRequested(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitRequests[id]
}

// Mutate runs fn under the store lock against the job's live record,
// then broadcasts a snapshot. This is the only way the supervisor
// touches job fields, keeping all mutation serialized through the
// single lock.
func (s *Store) Mutate(id uint64, fn func(*domain.Job)) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	fn(job)
	s.mu.Unlock()
	s.broadcast()
}

// MutateSilent is like Mutate but does not broadcast; used for the
// high-frequency log-append path where the caller controls batching.
func (s *Store) MutateSilent(id uint64, fn func(*domain.Job)) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		fn(job)
	}
	s.mu.Unlock()
}

// Broadcast forces a snapshot to listeners without mutating a job.
func (s *Store) Broadcast() { s.broadcast() }

// FinishCancellation transitions a processing job once its supervisor
// loop has actually stopped: straight to cancelled, or back to waiting
// if a restart was requested in the meantime.
func (s *Store) FinishCancellation(id uint64, logLine string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	restart := s.restartRequests[id]
	if restart {
		delete(s.restartRequests, id)
		job.Progress = 0
		job.FailureReason = ""
		job.SkipReason = ""
		job.WaitMetadata = nil
		appendLog(job, logLine)
		job.Status = domain.StatusWaiting
		s.appendQueueIdempotent(id)
	} else {
		job.Status = domain.StatusCancelled
		job.Progress = 0
		appendLog(job, logLine)
	}
	delete(s.cancelRequests, id)
	delete(s.active, id)
	s.mu.Unlock()

	s.wakeOne()
	s.broadcast()
}

// FinishWait transitions a processing job to paused once its supervisor
// loop has written the wait segment and recorded the given metadata.
func (s *Store) FinishWait(id uint64, meta domain.WaitMetadata) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	job.Status = domain.StatusPaused
	job.WaitMetadata = &meta
	s.removeFromQueue(id)
	delete(s.waitRequests, id)
	delete(s.cancelRequests, id)
	delete(s.active, id)
	s.mu.Unlock()

	s.broadcast()
}

func appendLog(job *domain.Job, line string) {
	if line == "" {
		return
	}
	job.Log = append(job.Log, line)
	if len(job.Log) > domain.MaxLogLines {
		job.Log = job.Log[len(job.Log)-domain.MaxLogLines:]
	}
	job.LogTail += line + "\n"
	if len(job.LogTail) > domain.MaxLogTailBytes {
		job.LogTail = job.LogTail[len(job.LogTail)-domain.MaxLogTailBytes:]
	}
}

// AppendLog appends a trimmed log line under the store lock (used by
// the supervisor's stderr line parser).
func (s *Store) AppendLog(id uint64, line string) {
	s.MutateSilent(id, func(j *domain.Job) { appendLog(j, line) })
}

// --- Media-info cache ---

// MediaInfo returns the cached probe result for path, if any.
func (s *Store) MediaInfo(path string) (domain.MediaInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mi, ok := s.mediaInfo[path]
	return mi, ok
}

// SetMediaInfo stores a probed result in the cache.
func (s *Store) SetMediaInfo(path string, mi domain.MediaInfo) {
	s.mu.Lock()
	s.mediaInfo[path] = mi
	s.mu.Unlock()
}

// --- Known-outputs set ---

// IsKnownOutput reports whether path was previously registered as a
// Smart Scan output.
func (s *Store) IsKnownOutput(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.knownOutputs[path]
}

// RegisterKnownOutput adds path to the known-outputs set.
func (s *Store) RegisterKnownOutput(path string) {
	s.mu.Lock()
	s.knownOutputs[path] = true
	s.mu.Unlock()
}

// ReserveOutputPath atomically tests for existence in the known-outputs
// set and inserts the chosen path under a single lock acquisition (spec
// §9 "Output-path uniqueness"). onDisk additionally checks on-disk
// presence for paths not yet known.
func (s *Store) ReserveOutputPath(candidates []string, onDisk func(string) bool) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range candidates {
		if s.knownOutputs[c] {
			continue
		}
		if onDisk != nil && onDisk(c) {
			continue
		}
		s.knownOutputs[c] = true
		return c, true
	}
	return "", false
}

// --- Smart Scan batches ---

// RegisterBatch inserts a new Smart Scan batch in status scanning.
func (s *Store) RegisterBatch(b *domain.SmartScanBatch) {
	s.mu.Lock()
	s.batches[b.ID] = b
	s.mu.Unlock()
}

// MutateBatch runs fn against the live batch record under the store lock.
func (s *Store) MutateBatch(id string, fn func(*domain.SmartScanBatch)) {
	s.mu.Lock()
	b, ok := s.batches[id]
	if ok {
		fn(b)
	}
	s.mu.Unlock()
	if ok {
		s.broadcast()
	}
}

// Batch returns a copy of the batch record.
func (s *Store) Batch(id string) (domain.SmartScanBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return domain.SmartScanBatch{}, false
	}
	return *b, true
}

// JobBatchID returns the batch id a job belongs to, if any.
func (s *Store) JobBatchID(id uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.BatchID == "" {
		return "", false
	}
	return job.BatchID, true
}

// RecordBatchCompletion : increments processed and
// transitions the batch to completed once processed >= candidates.
func (s *Store) RecordBatchCompletion(batchID string, nowMs int64) {
	s.mu.Lock()
	b, ok := s.batches[batchID]
	if ok {
		b.Processed++
		if b.Processed >= b.Candidates && b.Status != domain.ScanStatusCompleted {
			b.Status = domain.ScanStatusCompleted
			b.EndTimeMs = nowMs
		}
	}
	s.mu.Unlock()
	if ok {
		s.broadcast()
	}
}

// Job returns a copy of the job record, if present.
func (s *Store) Job(id uint64) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *j, true
}

// EnqueueExisting inserts an already-constructed job (used by Smart Scan
// video candidates and by queue-sidecar restore) and wakes a worker.
func (s *Store) EnqueueExisting(job *domain.Job) {
	s.mu.Lock()
	if job.ID == 0 {
		s.nextID++
		job.ID = s.nextID
	} else if job.ID > s.nextID {
		s.nextID = job.ID
	}
	s.jobs[job.ID] = job
	if job.Status == domain.StatusWaiting {
		s.appendQueueIdempotent(job.ID)
	}
	s.mu.Unlock()
	if job.Status == domain.StatusWaiting {
		s.wakeOne()
	}
	s.broadcast()
}

// RestoreTerminalOrPaused inserts a job record without touching the
// queue (used for restoring completed/failed/paused jobs from the
// queue sidecar.9).
func (s *Store) RestoreTerminalOrPaused(job *domain.Job) {
	s.mu.Lock()
	if job.ID > s.nextID {
		s.nextID = job.ID
	}
	s.jobs[job.ID] = job
	s.mu.Unlock()
}

// AllJobsEmpty reports whether the store holds no jobs at all (used at
// startup to decide whether to attempt sidecar restore.9).
func (s *Store) AllJobsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs) == 0
}

// WakeAll wakes every parked worker.
func (s *Store) WakeAll() { s.wakeAll() }
