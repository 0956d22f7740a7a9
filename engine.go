// Package ffgo wires the job store, scheduler, preset manager, tool
// resolver, and Smart Scan runner into a single Engine: a long-lived
// service that owns a background worker pool and drives transcode jobs
// from submission through completion.
package ffgo

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/five82/ffgo/internal/domain"
	"github.com/five82/ffgo/internal/jobstore"
	"github.com/five82/ffgo/internal/mediainfo"
	"github.com/five82/ffgo/internal/presets"
	"github.com/five82/ffgo/internal/preview"
	"github.com/five82/ffgo/internal/scheduler"
	"github.com/five82/ffgo/internal/smartscan"
	"github.com/five82/ffgo/internal/store"
	"github.com/five82/ffgo/internal/supervisor"
	"github.com/five82/ffgo/internal/tool"
)

// Engine is the process-wide entry point: one job store, one worker
// pool, one preset manager, one tool resolver, one Smart Scan runner.
type Engine struct {
	Store   *jobstore.Store
	Presets *presets.Manager
	Tools   *tool.Resolver

	dataDir     string
	previewsDir string
	scheduler   *scheduler.Scheduler
	scanner     *smartscan.Runner
	log         zerolog.Logger

	settingsMu sync.Mutex
	settings   domain.AppSettings

	handlersMu sync.Mutex
	handlers   []EventHandler
}

// Config configures a new Engine.
type Config struct {
	DataDir           string
	ConfiguredWorkers int
	Logger            zerolog.Logger
}

// New constructs an Engine, restores any persisted queue state, and
// starts the worker pool. dataDir holds the presets, settings, queue,
// and preview sidecars.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	previewsDir := filepath.Join(cfg.DataDir, "previews")

	// Settings/presets load and the previews directory creation touch
	// independent sidecars; run them concurrently and fail on the first error.
	var settings domain.AppSettings
	var presetMgr *presets.Manager
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		settings, err = store.LoadSettings(cfg.DataDir)
		return err
	})
	g.Go(func() (err error) {
		presetMgr, err = presets.NewManager(cfg.DataDir)
		return err
	})
	g.Go(func() error {
		return os.MkdirAll(previewsDir, 0o755)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("initialize engine state: %w", err)
	}

	js := jobstore.New()
	js.SetPresetLookup(presetMgr)
	tools := tool.NewResolver(settings)

	e := &Engine{
		Store:       js,
		Presets:     presetMgr,
		Tools:       tools,
		dataDir:     cfg.DataDir,
		previewsDir: previewsDir,
		log:         cfg.Logger,
		settings:    settings,
	}

	sv := &supervisor.Supervisor{
		Store:          js,
		Tools:          tools,
		Presets:        presetMgr,
		PreviewsDir:    previewsDir,
		CapturePercent: settings.PreviewCapturePercent,
		Log:            cfg.Logger,
	}
	e.scheduler = scheduler.New(js, cfg.ConfiguredWorkers, sv.Run, cfg.Logger)
	e.scanner = &smartscan.Runner{
		Store:    js,
		Presets:  presetMgr,
		Tools:    tools,
		Progress: e.emitSmartScanProgress,
	}

	js.AddListener(e.emitQueueState)
	js.AddListener(func(state domain.QueueState) {
		if err := store.SaveQueueState(cfg.DataDir, state); err != nil {
			e.log.Warn().Err(err).Msg("failed to persist queue sidecar")
		}
	})

	if js.AllJobsEmpty() {
		if state, err := store.LoadQueueState(cfg.DataDir); err == nil && len(state.Jobs) > 0 {
			store.RestoreInto(js, state)
		}
	}

	e.scheduler.Start(ctx)
	return e, nil
}

// WorkerCount returns the derived or clamped worker count.
func (e *Engine) WorkerCount() int { return e.scheduler.WorkerCount() }

// AddListener registers h to receive every Event emitted by the engine.
func (e *Engine) AddListener(h EventHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers = append(e.handlers, h)
}

// AddReporter bridges a Reporter onto the listener mechanism, dispatching
// each Event to the matching Reporter method.
func (e *Engine) AddReporter(r Reporter) {
	e.AddListener(func(ev Event) error {
		switch v := ev.(type) {
		case QueueStateEvent:
			r.QueueState(v.State)
		case SmartScanProgressEvent:
			r.SmartScanProgress(v.RootPath, v.BatchID, v.FilesScanned, v.Candidates, v.Processed)
		case WarningEvent:
			r.Warning(v.Message)
		case ErrorEvent:
			r.Error(v.Title, v.Message, v.Context)
		}
		return nil
	})
}

func (e *Engine) dispatch(ev Event) {
	e.handlersMu.Lock()
	hs := append([]EventHandler(nil), e.handlers...)
	e.handlersMu.Unlock()
	for _, h := range hs {
		if err := h(ev); err != nil {
			e.log.Warn().Err(err).Msg("event listener returned an error")
		}
	}
}

func (e *Engine) emitQueueState(state domain.QueueState) {
	e.dispatch(QueueStateEvent{
		BaseEvent: BaseEvent{EventType: EventTypeQueueState, Time: NewTimestamp()},
		State:     state,
	})
}

func (e *Engine) emitSmartScanProgress(rootPath, batchID string, filesScanned, candidates, processed int) {
	e.dispatch(SmartScanProgressEvent{
		BaseEvent:    BaseEvent{EventType: EventTypeSmartScan, Time: NewTimestamp()},
		RootPath:     rootPath,
		BatchID:      batchID,
		FilesScanned: filesScanned,
		Candidates:   candidates,
		Processed:    processed,
	})
}

func (e *Engine) emitWarning(message string) {
	e.dispatch(WarningEvent{BaseEvent: BaseEvent{EventType: EventTypeWarning, Time: NewTimestamp()}, Message: message})
}

func (e *Engine) emitError(title, message, context string) {
	e.dispatch(ErrorEvent{
		BaseEvent: BaseEvent{EventType: EventTypeError, Time: NewTimestamp()},
		Title:     title, Message: message, Context: context,
	})
}

// GetQueueState returns the current snapshot of all known jobs.
func (e *Engine) GetQueueState() domain.QueueState { return e.Store.Snapshot() }

// GetPresets returns all presets.
func (e *Engine) GetPresets() []domain.Preset { return e.Presets.List() }

// SavePreset inserts or updates a preset and returns the full list.
func (e *Engine) SavePreset(p domain.Preset) ([]domain.Preset, error) { return e.Presets.Save(p) }

// DeletePreset removes a preset by id and returns the full list.
func (e *Engine) DeletePreset(id string) ([]domain.Preset, error) { return e.Presets.Delete(id) }

// GetAppSettings returns a copy of the current application settings.
func (e *Engine) GetAppSettings() domain.AppSettings {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()
	return e.settings
}

// SaveAppSettings persists s and re-points the tool resolver at its
// (possibly changed) custom paths.
func (e *Engine) SaveAppSettings(s domain.AppSettings) (domain.AppSettings, error) {
	if err := store.SaveSettings(e.dataDir, s); err != nil {
		return domain.AppSettings{}, err
	}
	e.settingsMu.Lock()
	e.settings = s
	e.settingsMu.Unlock()
	e.Tools.Settings = s.Tools
	return s, nil
}

// GetSmartScanDefaults returns the persisted Smart Scan defaults.
func (e *Engine) GetSmartScanDefaults() domain.SmartScanConfig {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()
	return e.settings.SmartScanDefaults
}

// SaveSmartScanDefaults persists new Smart Scan defaults.
func (e *Engine) SaveSmartScanDefaults(cfg domain.SmartScanConfig) error {
	e.settingsMu.Lock()
	e.settings.SmartScanDefaults = cfg
	updated := e.settings
	e.settingsMu.Unlock()
	return store.SaveSettings(e.dataDir, updated)
}

// GetExternalToolStatuses reports resolution status for ffmpeg, ffprobe,
// and avifenc.
func (e *Engine) GetExternalToolStatuses() []domain.ExternalToolStatus {
	return []domain.ExternalToolStatus{
		e.Tools.Status(domain.ToolFfmpeg),
		e.Tools.Status(domain.ToolFfprobe),
		e.Tools.Status(domain.ToolAvifenc),
	}
}

// EnqueueTranscodeJob enqueues a single user-submitted video job.
func (e *Engine) EnqueueTranscodeJob(sourcePath string, sizeMB float64, codec, presetID string) *domain.Job {
	return e.Store.Enqueue(sourcePath, domain.JobTypeVideo, domain.JobSourceUser, sizeMB, codec, presetID)
}

// CancelTranscodeJob cancels job id, immediately if waiting or via a
// cooperative request flag if already processing.
func (e *Engine) CancelTranscodeJob(id uint64) bool { return e.Store.Cancel(id) }

// WaitTranscodeJob requests that a processing job pause at its next
// checkpoint, preserving enough state to resume later.
func (e *Engine) WaitTranscodeJob(id uint64) bool { return e.Store.Wait(id) }

// ResumeTranscodeJob re-queues a paused job so it resumes from its
// saved checkpoint.
func (e *Engine) ResumeTranscodeJob(id uint64) bool { return e.Store.Resume(id) }

// RestartTranscodeJob re-queues a failed job from scratch, or requests
// a cancel-then-restart if it is currently processing.
func (e *Engine) RestartTranscodeJob(id uint64) bool { return e.Store.Restart(id) }

// ReorderWaitingJobs moves the named waiting jobs to the front of the
// queue in the given order.
func (e *Engine) ReorderWaitingJobs(orderedIDs []uint64) bool { return e.Store.ReorderWaiting(orderedIDs) }

// RunAutoCompress starts a Smart Scan batch rooted at root, using the
// persisted Smart Scan defaults.
func (e *Engine) RunAutoCompress(ctx context.Context, root string) (*domain.SmartScanBatch, error) {
	batch, err := e.scanner.RunAutoCompress(ctx, root, e.GetSmartScanDefaults())
	if err != nil {
		e.emitWarning(fmt.Sprintf("could not start Smart Scan at %s: %v", root, err))
	}
	return batch, err
}

// InspectMedia probes a single file with ffprobe.
func (e *Engine) InspectMedia(ctx context.Context, path string) (domain.MediaInfo, error) {
	ffprobePath, _, _, err := e.Tools.EnsureAvailable(domain.ToolFfprobe)
	if err != nil {
		e.emitError("media inspection failed", err.Error(), path)
		return domain.MediaInfo{}, err
	}
	mi, err := mediainfo.Probe(ctx, ffprobePath, path)
	if err != nil {
		e.emitError("media inspection failed", err.Error(), path)
	}
	return mi, err
}

// GetPreviewDataURL generates (or reuses) a single-frame thumbnail for
// path and returns it as a data: URL.
func (e *Engine) GetPreviewDataURL(ctx context.Context, path string) (string, error) {
	ffmpegPath, _, _, err := e.Tools.EnsureAvailable(domain.ToolFfmpeg)
	if err != nil {
		return "", err
	}

	mi, err := e.InspectMedia(ctx, path)
	if err != nil {
		return "", err
	}

	seek := preview.SeekSeconds(mi.DurationSeconds, e.GetAppSettings().PreviewCapturePercent)
	thumbPath, err := preview.Generate(ctx, ffmpegPath, path, e.previewsDir, seek)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(thumbPath)
	if err != nil {
		return "", err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(thumbPath))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}
