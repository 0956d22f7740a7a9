// Package smartscan implements the two-pass directory-walking candidate
// discovery and enqueue pipeline: a recursive walk with image/video
// classification.
package smartscan

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/five82/ffgo/internal/domain"
	"github.com/five82/ffgo/internal/jobstore"
	"github.com/five82/ffgo/internal/mediainfo"
	"github.com/five82/ffgo/internal/presets"
	"github.com/five82/ffgo/internal/tool"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true, ".avif": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true,
	".flv": true, ".ts": true, ".m2ts": true, ".wmv": true,
}

var compressedOutputRe = regexp.MustCompile(`\.compressed(?:\s*\(\d+\))?\.[A-Za-z0-9]+$`)

// ProgressFunc is invoked after each progress-relevant change to a
// running batch.
type ProgressFunc func(rootPath, batchID string, filesScanned, candidates, processed int)

// Runner executes Smart Scan batches.
type Runner struct {
	Store    *jobstore.Store
	Presets  *presets.Manager
	Tools    *tool.Resolver
	Progress ProgressFunc
}

// RunAutoCompress registers a new batch in status scanning, emits an
// initial zero-valued progress event, spawns a background task doing
// the two directory passes, and returns the batch descriptor
// immediately.
func (r *Runner) RunAutoCompress(ctx context.Context, root string, cfg domain.SmartScanConfig) (*domain.SmartScanBatch, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("root path does not exist: %s", root)
	}

	batch := &domain.SmartScanBatch{
		ID:            uuid.NewString(),
		RootDirectory: root,
		Status:        domain.ScanStatusScanning,
		StartTimeMs:   time.Now().UnixMilli(),
	}
	r.Store.RegisterBatch(batch)
	r.emitProgress(batch)

	go r.runBackground(ctx, batch.ID, root, cfg)

	return batch, nil
}

func (r *Runner) emitProgress(b *domain.SmartScanBatch) {
	if r.Progress != nil {
		r.Progress(b.RootDirectory, b.ID, b.FilesScanned, b.Candidates, b.Processed)
	}
}

func (r *Runner) runBackground(ctx context.Context, batchID, root string, cfg domain.SmartScanConfig) {
	files, err := r.walkPass1(root)
	if err != nil {
		r.Store.MutateBatch(batchID, func(b *domain.SmartScanBatch) {
			b.Status = domain.ScanStatusFailed
			b.EndTimeMs = time.Now().UnixMilli()
		})
		return
	}

	r.walkPass2(ctx, batchID, root, files, cfg)
}

// walkPass1 performs a recursive enumeration of root plus known-outputs
// pre-seeding.
func (r *Runner) walkPass1(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than abort the whole walk
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)

		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".avif" || (videoExtensions[ext] && compressedOutputRe.MatchString(strings.ToLower(name))) {
			r.Store.RegisterKnownOutput(path)
		}
		return nil
	})
	return files, err
}

// walkPass2 classifies and enqueues each file found by walkPass1.
func (r *Runner) walkPass2(ctx context.Context, batchID, root string, files []string, cfg domain.SmartScanConfig) {
	var filesScanned, candidates int

	// FilesScanned and Candidates are exclusively owned by this
	// goroutine; Processed is shared with asynchronous video-job
	// completions (RecordBatchCompletion), so emit only ever adds to it
	// and never overwrites it wholesale.
	emit := func() {
		r.Store.MutateBatch(batchID, func(b *domain.SmartScanBatch) {
			b.FilesScanned = filesScanned
			b.Candidates = candidates
		})
		snap, _ := r.Store.Batch(batchID)
		if r.Progress != nil {
			r.Progress(root, batchID, filesScanned, candidates, snap.Processed)
		}
	}

	for _, path := range files {
		filesScanned++
		if r.Store.IsKnownOutput(path) {
			if filesScanned%32 == 0 {
				emit()
			}
			continue
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case imageExtensions[ext]:
			// Candidates must be counted before RecordBatchCompletion runs
			// inside handleImageCandidate, or completion detection there
			// would compare against a stale (too-low) candidate total.
			candidates++
			emit()
			r.handleImageCandidate(ctx, batchID, path, ext, cfg)
		case videoExtensions[ext]:
			if r.handleVideoCandidate(ctx, batchID, path, cfg) {
				candidates++
				emit()
			} else if filesScanned%32 == 0 {
				emit()
			}
		default:
			if filesScanned%32 == 0 {
				emit()
			}
		}
	}

	r.Store.MutateBatch(batchID, func(b *domain.SmartScanBatch) {
		if b.Status == domain.ScanStatusScanning {
			b.Status = domain.ScanStatusCompleted
			b.EndTimeMs = time.Now().UnixMilli()
		}
	})
	emit()
}

// handleImageCandidate classifies a single image candidate, skipping
// already-AVIF files, undersized files, and files with an existing AVIF
// sibling; remaining candidates are encoded inline (avifenc, then the
// ffmpeg fallback) and recorded as an already-finished job.
func (r *Runner) handleImageCandidate(ctx context.Context, batchID, path, ext string, cfg domain.SmartScanConfig) {
	ext = strings.ToLower(ext)
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	avifPath := stem + ".avif"

	job := &domain.Job{
		Type:       domain.JobTypeImage,
		Source:     domain.JobSourceBatchScan,
		SourcePath: path,
		InputPath:  path,
		Status:     domain.StatusCompleted,
		Progress:   100,
		BatchID:    batchID,
	}

	info, statErr := os.Stat(path)
	if statErr == nil {
		job.OriginalSizeMB = float64(info.Size()) / (1024 * 1024)
	}

	recordAndEnqueue := func() {
		r.Store.EnqueueExisting(job)
		r.Store.RecordBatchCompletion(batchID, time.Now().UnixMilli())
	}

	finishSkip := func(reason string) {
		job.Status = domain.StatusSkipped
		job.SkipReason = reason
		job.Progress = 0
		recordAndEnqueue()
	}

	if ext == ".avif" {
		finishSkip("Already AVIF")
		return
	}
	if statErr == nil && float64(info.Size()) < cfg.MinImageSizeKB*1024 {
		finishSkip(fmt.Sprintf("Size < %.0fKB", cfg.MinImageSizeKB))
		return
	}
	if _, err := os.Stat(avifPath); err == nil {
		job.PreviewPath = avifPath
		finishSkip("Existing .avif sibling")
		return
	}

	tmpPath := stem + ".avif.tmp"
	ok := r.encodeAvif(ctx, path, tmpPath)
	if !ok {
		job.Status = domain.StatusFailed
		job.FailureReason = "Transcode failed: avifenc and fallback encoder both failed"
		job.Progress = 0
		recordAndEnqueue()
		return
	}

	outInfo, err := os.Stat(tmpPath)
	if statErr == nil && err == nil && info.Size() > 0 {
		ratio := float64(outInfo.Size()) / float64(info.Size())
		if ratio > cfg.MinSavingRatio {
			_ = os.Remove(tmpPath)
			finishSkip(fmt.Sprintf("Low savings (%.1f%%)", (1-ratio)*100))
			return
		}
		job.OutputSizeMB = float64(outInfo.Size()) / (1024 * 1024)
	}

	if err := os.Rename(tmpPath, avifPath); err != nil {
		_ = os.Remove(tmpPath)
		job.Status = domain.StatusFailed
		job.FailureReason = fmt.Sprintf("Transcode failed: %v", err)
		job.Progress = 0
		recordAndEnqueue()
		return
	}

	r.Store.RegisterKnownOutput(avifPath)
	job.OutputPath = avifPath
	recordAndEnqueue()
}

func (r *Runner) encodeAvif(ctx context.Context, input, tmpPath string) bool {
	if avifencPath, _, _, err := r.Tools.EnsureAvailable("avifenc"); err == nil {
		cmd := exec.CommandContext(ctx, avifencPath, "--lossless", input, tmpPath)
		if cmd.Run() == nil {
			return true
		}
	}
	ffmpegPath, _, _, err := r.Tools.EnsureAvailable(domain.ToolFfmpeg)
	if err != nil {
		return false
	}
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-y", "-nostdin", "-i", input,
		"-c:v", "libaom-av1", "-still-picture", "1",
		"-pix_fmt", "yuv444p10le", "-frames:v", "1",
		tmpPath,
	)
	return cmd.Run() == nil
}

// handleVideoCandidate probes a video candidate, skips already-efficient
// codecs and undersized files, and enqueues a transcode job otherwise.
// Returns true if a candidate job was created.
func (r *Runner) handleVideoCandidate(ctx context.Context, batchID, path string, cfg domain.SmartScanConfig) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)

	if sizeMB < cfg.MinVideoSizeMB {
		r.Store.EnqueueExisting(&domain.Job{
			Type: domain.JobTypeVideo, Source: domain.JobSourceBatchScan,
			SourcePath: path, InputPath: path, OriginalSizeMB: sizeMB,
			Status: domain.StatusSkipped, SkipReason: fmt.Sprintf("Size < %.0fMB", cfg.MinVideoSizeMB),
			BatchID: batchID,
		})
		return false
	}

	codec := r.probeCodec(ctx, path)
	if isAlreadyEfficient(codec) {
		r.Store.EnqueueExisting(&domain.Job{
			Type: domain.JobTypeVideo, Source: domain.JobSourceBatchScan,
			SourcePath: path, InputPath: path, OriginalSizeMB: sizeMB,
			OriginalCodec: codec,
			Status:        domain.StatusSkipped, SkipReason: fmt.Sprintf("Already %s", codec),
			BatchID: batchID,
		})
		return false
	}

	outputPath, ok := r.reserveOutputPath(path)
	if !ok {
		return false
	}

	estimate := estimateSeconds(r.Presets, cfg.PresetID, sizeMB)

	job := &domain.Job{
		Type: domain.JobTypeVideo, Source: domain.JobSourceBatchScan,
		SourcePath: path, InputPath: path, OutputPath: outputPath,
		OriginalSizeMB: sizeMB, OriginalCodec: codec,
		PresetID: cfg.PresetID, Status: domain.StatusWaiting,
		BatchID: batchID, EstimatedSeconds: estimate,
	}
	r.Store.EnqueueExisting(job)

	r.Store.MutateBatch(batchID, func(b *domain.SmartScanBatch) {
		b.JobIDs = append(b.JobIDs, job.ID)
		if b.Status == domain.ScanStatusScanning {
			b.Status = domain.ScanStatusRunning
		}
	})
	return true
}

func isAlreadyEfficient(codec string) bool {
	c := strings.ToLower(codec)
	switch c {
	case "hevc", "hevc_nvenc", "h265", "av1":
		return true
	default:
		return false
	}
}

func (r *Runner) probeCodec(ctx context.Context, path string) string {
	ffprobePath, _, _, err := r.Tools.EnsureAvailable(domain.ToolFfprobe)
	if err != nil {
		return ""
	}
	mi, err := mediainfo.Probe(ctx, ffprobePath, path)
	if err != nil {
		return ""
	}
	return mi.VideoCodec
}

// reserveOutputPath picks a non-colliding output path by trying
// "<stem>.compressed<ext>" then numbered variants; a single lock
// acquisition tests for existence/known-outputs and inserts the chosen
// path atomically.
func (r *Runner) reserveOutputPath(sourcePath string) (string, bool) {
	ext := filepath.Ext(sourcePath)
	stem := strings.TrimSuffix(sourcePath, ext)

	var candidates []string
	candidates = append(candidates, fmt.Sprintf("%s.compressed%s", stem, ext))
	for n := 1; n < 1000; n++ {
		candidates = append(candidates, fmt.Sprintf("%s.compressed (%d)%s", stem, n, ext))
	}

	return r.Store.ReserveOutputPath(candidates, func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	})
}

// estimateSeconds looks up presetID and projects encode time for
// sizeMB from its historical stats.
func estimateSeconds(pm *presets.Manager, presetID string, sizeMB float64) *float64 {
	preset, ok := pm.Get(presetID)
	if !ok {
		return nil
	}
	return domain.EstimateProcessingSeconds(preset, sizeMB)
}
