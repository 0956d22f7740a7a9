// Package jobstore implements the canonical in-memory job map, waiting
// queue, and auxiliary sets. A single mutex guards all of it, so every
// mutation is serialized and every snapshot is internally consistent.
package jobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/five82/ffgo/internal/domain"
)

// Listener receives a queue snapshot after every externally visible
// change. Invocation happens after the store's lock is released.
type Listener func(domain.QueueState)

// PresetLookup resolves a preset by id. Satisfied by
// *presets.Manager; declared here (rather than imported) so this
// package doesn't depend on internal/store through internal/presets.
type PresetLookup interface {
	Get(id string) (domain.Preset, bool)
}

// Store owns the job map, waiting queue, active-jobs set, the
// cancellation/wait/restart request sets, the media-info cache, the
// known-outputs set, and the Smart Scan batch map.
type Store struct {
	mu   sync.Mutex
	cond *sync.Cond

	jobs   map[uint64]*domain.Job
	queue  []uint64
	active map[uint64]bool

	cancelRequests  map[uint64]bool
	waitRequests    map[uint64]bool
	restartRequests map[uint64]bool

	mediaInfo    map[string]domain.MediaInfo
	knownOutputs map[string]bool
	batches      map[string]*domain.SmartScanBatch

	nextID uint64

	listenersMu sync.Mutex
	listeners   []Listener

	presets PresetLookup
}

// SetPresetLookup wires the preset manager Enqueue consults to
// estimate processing time for newly created jobs. Optional; Enqueue
// leaves EstimatedSeconds nil when unset.
func (s *Store) SetPresetLookup(pl PresetLookup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets = pl
}

// New returns an empty Store.
func New() *Store {
	s := &Store{
		jobs:            make(map[uint64]*domain.Job),
		active:          make(map[uint64]bool),
		cancelRequests:  make(map[uint64]bool),
		waitRequests:    make(map[uint64]bool),
		restartRequests: make(map[uint64]bool),
		mediaInfo:       make(map[string]domain.MediaInfo),
		knownOutputs:    make(map[string]bool),
		batches:         make(map[string]*domain.SmartScanBatch),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// AddListener registers a callback invoked with a snapshot after every
// externally visible change. Listener registration has its own lock so
// it may proceed concurrently with broadcasts.
func (s *Store) AddListener(l Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) broadcast() {
	snap := s.Snapshot()
	s.listenersMu.Lock()
	ls := append([]Listener(nil), s.listeners...)
	s.listenersMu.Unlock()
	for _, l := range ls {
		l(snap)
	}
}

// wakeOne wakes a single parked worker.
func (s *Store) wakeOne() { s.cond.Signal() }

// wakeAll wakes every parked worker (recovery/restart).
func (s *Store) wakeAll() { s.cond.Broadcast() }

func outputPathForVideo(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	stem := strings.TrimSuffix(sourcePath, ext)
	return fmt.Sprintf("%s.compressed%s", stem, ext)
}

// Enqueue creates and queues a new job. If sourcePath is statable, the
// real on-disk size overrides the caller-supplied sizeMB hint. When a
// preset lookup has been wired via SetPresetLookup, EstimatedSeconds is
// populated from that preset's historical stats.
func (s *Store) Enqueue(sourcePath string, jobType domain.JobType, source domain.JobSource, sizeMB float64, codec string, presetID string) *domain.Job {
	if info, err := os.Stat(sourcePath); err == nil {
		sizeMB = float64(info.Size()) / (1024 * 1024)
	}

	s.mu.Lock()

	s.nextID++
	id := s.nextID

	var outputPath string
	if jobType == domain.JobTypeVideo {
		outputPath = outputPathForVideo(sourcePath)
	}

	var estimate *float64
	if s.presets != nil {
		if preset, ok := s.presets.Get(presetID); ok {
			estimate = domain.EstimateProcessingSeconds(preset, sizeMB)
		}
	}

	job := &domain.Job{
		ID:               id,
		SourcePath:       sourcePath,
		Type:             jobType,
		Source:           source,
		OriginalSizeMB:   sizeMB,
		OriginalCodec:    codec,
		PresetID:         presetID,
		Status:           domain.StatusWaiting,
		InputPath:        sourcePath,
		OutputPath:       outputPath,
		EstimatedSeconds: estimate,
	}

	s.jobs[id] = job
	s.queue = append(s.queue, id)
	s.mu.Unlock()

	s.wakeOne()
	s.broadcast()
	return job
}

// Cancel cancels job id immediately if it is waiting, or sets a
// cooperative cancel-request flag if it is already processing.
func (s *Store) Cancel(id uint64) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	switch job.Status {
	case domain.StatusWaiting, domain.StatusQueued:
		s.removeFromQueue(id)
		job.Status = domain.StatusCancelled
		job.Progress = 0
		appendLog(job, "Cancelled before start")
		s.mu.Unlock()
		s.broadcast()
		return true
	case domain.StatusProcessing:
		s.cancelRequests[id] = true
		s.mu.Unlock()
		return true
	default:
		s.mu.Unlock()
		return false
	}
}

// Wait sets a cooperative wait-request flag; valid only while the job
// is processing.
func (s *Store) Wait(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.StatusProcessing {
		return false
	}
	s.waitRequests[id] = true
	return true
}

// Resume re-queues a paused job; valid only from paused.
func (s *Store) Resume(id uint64) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.StatusPaused {
		s.mu.Unlock()
		return false
	}
	job.Status = domain.StatusWaiting
	s.appendQueueIdempotent(id)
	s.mu.Unlock()
	s.wakeOne()
	s.broadcast()
	return true
}

// Restart re-queues a terminal (non-completed, non-skipped) job from
// scratch, or requests a cancel-then-restart if it is currently
// processing.
func (s *Store) Restart(id uint64) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	switch job.Status {
	case domain.StatusCompleted, domain.StatusSkipped:
		s.mu.Unlock()
		return false
	case domain.StatusProcessing:
		s.restartRequests[id] = true
		s.cancelRequests[id] = true
		s.mu.Unlock()
		return true
	default:
		job.Progress = 0
		job.FailureReason = ""
		job.SkipReason = ""
		job.WaitMetadata = nil
		job.Status = domain.StatusWaiting
		s.appendQueueIdempotent(id)
		s.mu.Unlock()
		s.wakeOne()
		s.broadcast()
		return true
	}
}

// ReorderWaiting moves the named waiting jobs to the front of the queue
// in the given order, leaving unlisted jobs appended afterward in their
// prior relative order. Returns false if the resulting order is
// unchanged.
func (s *Store) ReorderWaiting(orderedIDs []uint64) bool {
	s.mu.Lock()

	wanted := make(map[uint64]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := s.jobs[id]; ok {
			wanted[id] = true
		}
	}

	present := make(map[uint64]bool, len(s.queue))
	for _, id := range s.queue {
		present[id] = true
	}

	newQueue := make([]uint64, 0, len(s.queue))
	for _, id := range orderedIDs {
		if wanted[id] && present[id] {
			newQueue = append(newQueue, id)
		}
	}
	for _, id := range s.queue {
		if !wanted[id] {
			newQueue = append(newQueue, id)
		}
	}

	changed := !equalIDs(s.queue, newQueue)
	if changed {
		s.queue = newQueue
	}
	s.mu.Unlock()

	if changed {
		s.broadcast()
	}
	return changed
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Snapshot returns a point-in-time copy of every job and its queue
// position.
func (s *Store) Snapshot() domain.QueueState {
	s.mu.Lock()
	defer s.mu.Unlock()

	idxOf := make(map[uint64]int, len(s.queue))
	for i, id := range s.queue {
		idxOf[id] = i
	}

	jobs := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		clone := *j
		if idx, ok := idxOf[j.ID]; ok {
			v := idx
			clone.QueueOrder = &v
		} else {
			clone.QueueOrder = nil
		}
		jobs = append(jobs, clone)
	}
	return domain.QueueState{Jobs: jobs}
}

func (s *Store) removeFromQueue(id uint64) {
	for i, qid := range s.queue {
		if qid == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *Store) appendQueueIdempotent(id uint64) {
	for _, qid := range s.queue {
		if qid == id {
			return
		}
	}
	s.queue = append(s.queue, id)
}
