// Package store implements atomic sidecar persistence for presets,
// settings, and queue state: every write goes through a temp file in
// the same directory followed by a rename, so a crash never leaves a
// partially written sidecar.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/five82/ffgo/internal/domain"
	"github.com/five82/ffgo/internal/jobstore"
)

// atomicWriteJSON writes v to path via a temp file in the same
// directory followed by a rename, so a crash never leaves a partially
// written sidecar.
func atomicWriteJSON(path string, v any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp sidecar: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp sidecar: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename sidecar into place: %w", err)
	}
	return nil
}

// PresetsPath is the presets sidecar path relative to the given directory.
func PresetsPath(dir string) string { return filepath.Join(dir, "presets.json") }

// SettingsPath is the settings sidecar path relative to the given directory.
func SettingsPath(dir string) string { return filepath.Join(dir, "settings.json") }

// QueuePath is the queue-state sidecar path relative to the given directory.
func QueuePath(dir string) string { return filepath.Join(dir, "queue.json") }

// SavePresets atomically rewrites the presets sidecar.
func SavePresets(dir string, presets []domain.Preset) error {
	return atomicWriteJSON(PresetsPath(dir), presets)
}

// LoadPresets reads the presets sidecar, accepting legacy field aliases.
func LoadPresets(dir string) ([]domain.Preset, error) {
	data, err := os.ReadFile(PresetsPath(dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read presets sidecar: %w", err)
	}
	var presets []domain.Preset
	if err := json.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("decode presets sidecar: %w", err)
	}
	return presets, nil
}

// SaveSettings atomically rewrites the settings sidecar.
func SaveSettings(dir string, settings domain.AppSettings) error {
	return atomicWriteJSON(SettingsPath(dir), settings)
}

// LoadSettings reads the settings sidecar, falling back to defaults
// when absent.
func LoadSettings(dir string) (domain.AppSettings, error) {
	data, err := os.ReadFile(SettingsPath(dir))
	if os.IsNotExist(err) {
		return domain.DefaultAppSettings(), nil
	}
	if err != nil {
		return domain.AppSettings{}, fmt.Errorf("read settings sidecar: %w", err)
	}
	var settings domain.AppSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.AppSettings{}, fmt.Errorf("decode settings sidecar: %w", err)
	}
	return settings, nil
}

// SaveQueueState atomically rewrites the queue sidecar.
func SaveQueueState(dir string, state domain.QueueState) error {
	return atomicWriteJSON(QueuePath(dir), state)
}

// LoadQueueState reads the queue sidecar, accepting legacy field aliases.
func LoadQueueState(dir string) (domain.QueueState, error) {
	data, err := os.ReadFile(QueuePath(dir))
	if os.IsNotExist(err) {
		return domain.QueueState{}, nil
	}
	if err != nil {
		return domain.QueueState{}, fmt.Errorf("read queue sidecar: %w", err)
	}
	var state domain.QueueState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.QueueState{}, fmt.Errorf("decode queue sidecar: %w", err)
	}
	return state, nil
}

// tempPathForVideoJob mirrors the process supervisor's temp-path
// derivation, used here only to best-effort
// reconstruct wait metadata for jobs recovered mid-processing.
func tempPathForVideoJob(job domain.Job) string {
	ext := filepath.Ext(job.OutputPath)
	stem := job.OutputPath[:len(job.OutputPath)-len(ext)]
	return stem + ".tmp" + ext
}

// RestoreInto queue-sidecar recovery rules: any
// job previously in processing is restored as paused with an
// explanatory log entry; video jobs whose temp segment exists on disk
// but carry no wait-metadata get best-effort wait-metadata
// reconstructed; waiting/queued jobs are sorted by persisted queueOrder
// (missing treated as +Inf) with id as tiebreaker, then re-appended.
func RestoreInto(s *jobstore.Store, state domain.QueueState) {
	type waitingJob struct {
		job   domain.Job
		order int
	}
	var waiting []waitingJob

	for _, j := range state.Jobs {
		job := j
		switch job.Status {
		case domain.StatusProcessing:
			job.Status = domain.StatusPaused
			appendRecoveryLog(&job, "Recovered after unexpected shutdown")
			if job.Type == domain.JobTypeVideo && job.WaitMetadata == nil {
				tmp := tempPathForVideoJob(job)
				if fileExists(tmp) {
					job.WaitMetadata = &domain.WaitMetadata{
						LastProgressPercent: job.Progress,
						TempOutputPath:      tmp,
					}
				}
			}
			s.RestoreTerminalOrPaused(&job)
		case domain.StatusWaiting, domain.StatusQueued:
			order := len(state.Jobs) + int(job.ID)
			if job.QueueOrder != nil {
				order = *job.QueueOrder
			}
			waiting = append(waiting, waitingJob{job: job, order: order})
		default:
			s.RestoreTerminalOrPaused(&job)
		}
	}

	sort.SliceStable(waiting, func(i, j int) bool {
		if waiting[i].order != waiting[j].order {
			return waiting[i].order < waiting[j].order
		}
		return waiting[i].job.ID < waiting[j].job.ID
	})

	for _, w := range waiting {
		job := w.job
		s.EnqueueExisting(&job)
	}
}

func appendRecoveryLog(job *domain.Job, line string) {
	job.Log = append(job.Log, line)
	if len(job.Log) > domain.MaxLogLines {
		job.Log = job.Log[len(job.Log)-domain.MaxLogLines:]
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
