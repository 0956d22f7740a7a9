// Package supervisor implements the per-job process supervisor: a
// per-file orchestration loop driving an external encoder process,
// parsing its stderr progress stream line by line.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/ffgo/internal/argscompose"
	"github.com/five82/ffgo/internal/domain"
	"github.com/five82/ffgo/internal/jobstore"
	"github.com/five82/ffgo/internal/mediainfo"
	"github.com/five82/ffgo/internal/presets"
	"github.com/five82/ffgo/internal/preview"
	"github.com/five82/ffgo/internal/resume"
	"github.com/five82/ffgo/internal/tool"
	"github.com/five82/ffgo/internal/util"
)

// Sentinel errors distinguishing precondition failures from runtime
// failures, checked with errors.Is.
var (
	ErrPresetMissing   = fmt.Errorf("preset missing")
	ErrToolUnavailable = fmt.Errorf("external tool unavailable")
	ErrEncoderFailed   = fmt.Errorf("encoder exited with failure")
	ErrFinalizeIO      = fmt.Errorf("finalize I/O failure")
)

// Supervisor runs the process-supervisor algorithm for claimed jobs.
type Supervisor struct {
	Store          *jobstore.Store
	Tools          *tool.Resolver
	Presets        *presets.Manager
	PreviewsDir    string
	CapturePercent float64
	Log            zerolog.Logger
}

var (
	durationHeaderRe = regexp.MustCompile(`Duration:\s*(\d{2}):(\d{2}):(\d{2}(?:\.\d+)?)`)
	timeRe           = regexp.MustCompile(`\btime=(\d{2}):(\d{2}):(\d{2}(?:\.\d+)?)`)
	outTimeRe        = regexp.MustCompile(`\bout_time=(\d{2}):(\d{2}):(\d{2}(?:\.\d+)?)`)
	outTimeMsRe      = regexp.MustCompile(`\bout_time_ms=(\d+)`)
	speedRe          = regexp.MustCompile(`\bspeed=\s*([\d.]+)x`)
)

// Run executes the 15-step algorithm for job. It returns nil on
// success, on a cooperative cancel/wait, and on a non-video skip; any
// other return wraps one of the sentinel errors above so callers can
// classify the failure with errors.Is.
func (sv *Supervisor) Run(ctx context.Context, job *domain.Job) error {
	id := job.ID

	// 1. Gate on type.
	if job.Type != domain.JobTypeVideo {
		sv.Store.Mutate(id, func(j *domain.Job) {
			j.Status = domain.StatusSkipped
			j.SkipReason = "worker only processes video"
		})
		return nil
	}

	// 2. Resolve preset.
	preset, ok := sv.Presets.Get(job.PresetID)
	if !ok {
		headline := fmt.Sprintf("No preset found for preset id '%s'", job.PresetID)
		sv.fail(id, headline)
		return fmt.Errorf("%s: %w", headline, ErrPresetMissing)
	}

	// 3. Acquire encoder binary.
	ffmpegPath, source, downloaded, err := sv.Tools.EnsureAvailable(domain.ToolFfmpeg)
	if err != nil {
		sv.fail(id, fmt.Sprintf("Transcode failed: %v", err))
		return fmt.Errorf("resolve ffmpeg: %w: %w", err, ErrToolUnavailable)
	}
	if downloaded {
		sv.Log.Info().Uint64("job", id).Str("tool", "ffmpeg").Msg("auto-downloaded encoder binary")
	}
	_ = source

	// 4. Populate media info.
	mi, err := sv.populateMediaInfo(ctx, job.InputPath)
	if err != nil {
		sv.Log.Warn().Uint64("job", id).Err(err).Msg("media probe failed, continuing without media info")
	}

	// 5. Compute output and temp paths.
	finalPath := job.OutputPath
	ext := filepath.Ext(finalPath)
	stem := strings.TrimSuffix(finalPath, ext)
	tempPath := stem + ".tmp" + ext
	resumeTempPath := stem + ".resume.tmp" + ext

	if low, availableMB := util.LowDiskSpace(filepath.Dir(finalPath)); low {
		sv.Log.Warn().Uint64("job", id).Uint64("availableMB", availableMB).Msg("low disk space in output directory")
	}

	// 6. Determine resume state.
	resumeFromSeconds, previousSegment, isResume := sv.determineResumeState(job, mi)

	targetTemp := tempPath
	if isResume {
		targetTemp = resumeTempPath
	}

	// 7. Derive effective preset for resume.
	effectivePreset := preset
	if isResume {
		derived, enabled := resume.DeriveEffectivePreset(preset, resumeFromSeconds)
		if enabled {
			effectivePreset = derived
		} else {
			isResume = false
		}
	}

	// 8. Generate a preview frame (failure is silent).
	var previewPath string
	if mi.DurationSeconds > 0 {
		seek := preview.SeekSeconds(mi.DurationSeconds, sv.CapturePercent)
		if p, err := preview.Generate(ctx, ffmpegPath, job.InputPath, sv.PreviewsDir, seek); err == nil {
			previewPath = p
		}
	}

	// 9. Publish an intermediate snapshot.
	sv.Store.Mutate(id, func(j *domain.Job) {
		j.InputPath = job.InputPath
		j.OutputPath = finalPath
		if mi.DurationSeconds > 0 {
			miCopy := mi
			j.MediaInfo = &miCopy
		}
		if previewPath != "" {
			j.PreviewPath = previewPath
		}
	})

	// 10. Compose argument vector.
	args := argscompose.Compose(effectivePreset, job.InputPath, targetTemp)

	sv.Store.Mutate(id, func(j *domain.Job) {
		j.LastCommand = append([]string{ffmpegPath}, args...)
	})

	// 11. Spawn the encoder with stderr piped, stdout discarded.
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	cmd.Stdout = nil
	stderr, err := cmd.StderrPipe()
	if err != nil {
		sv.fail(id, fmt.Sprintf("Transcode failed: %v", err))
		return fmt.Errorf("open stderr pipe: %w: %w", err, ErrEncoderFailed)
	}
	if err := cmd.Start(); err != nil {
		sv.fail(id, fmt.Sprintf("Transcode failed: %v", err))
		return fmt.Errorf("start encoder: %w: %w", err, ErrEncoderFailed)
	}

	outcome := sv.streamStderr(id, cmd, stderr, job.InputPath, resumeFromSeconds, mi.DurationSeconds)

	switch outcome.kind {
	case outcomeCancelled:
		sv.terminateAndWait(cmd)
		sv.Store.FinishCancellation(id, "Cancelled during processing")
		_ = os.Remove(targetTemp)
		return nil
	case outcomeWait:
		sv.terminateAndWait(cmd)
		meta := domain.WaitMetadata{
			LastProgressPercent: outcome.lastPercent,
			ProcessedSeconds:    outcome.effectiveElapsed,
			TempOutputPath:      targetTemp,
		}
		sv.Store.FinishWait(id, meta)
		return nil
	}

	// 13. Await child exit.
	waitErr := cmd.Wait()
	if sv.Store.CancelRequested(id) {
		sv.Store.FinishCancellation(id, "Cancelled during processing")
		_ = os.Remove(targetTemp)
		return nil
	}
	if waitErr != nil {
		headline := failureHeadline(waitErr)
		sv.fail(id, headline)
		_ = os.Remove(targetTemp)
		return fmt.Errorf("%s: %w", headline, ErrEncoderFailed)
	}

	// 14. Finalize.
	if isResume && previousSegment != "" {
		if err := resume.Finalize(ctx, ffmpegPath, previousSegment, targetTemp, finalPath); err != nil {
			sv.fail(id, err.Error())
			return fmt.Errorf("finalize resumed output: %w: %w", err, ErrFinalizeIO)
		}
	} else {
		if err := os.Rename(targetTemp, finalPath); err != nil {
			sv.fail(id, fmt.Sprintf("Transcode failed: %v", err))
			_ = os.Remove(targetTemp)
			return fmt.Errorf("rename temp output: %w: %w", err, ErrFinalizeIO)
		}
	}
	sv.Store.RegisterKnownOutput(finalPath)

	// 15. Record success.
	sv.recordSuccess(id, job, finalPath)
	return nil
}

func (sv *Supervisor) populateMediaInfo(ctx context.Context, inputPath string) (domain.MediaInfo, error) {
	if mi, ok := sv.Store.MediaInfo(inputPath); ok && mi.DurationSeconds > 0 {
		return mi, nil
	}
	ffprobePath, _, _, err := sv.Tools.EnsureAvailable(domain.ToolFfprobe)
	if err != nil {
		return domain.MediaInfo{}, err
	}
	mi, err := mediainfo.Probe(ctx, ffprobePath, inputPath)
	if err != nil {
		return domain.MediaInfo{}, err
	}
	sv.Store.SetMediaInfo(inputPath, mi)
	return mi, nil
}

// determineResumeState .
func (sv *Supervisor) determineResumeState(job *domain.Job, mi domain.MediaInfo) (resumeFromSeconds float64, previousSegment string, isResume bool) {
	if job.WaitMetadata == nil {
		return 0, "", false
	}
	wm := job.WaitMetadata
	if wm.TempOutputPath == "" {
		return 0, "", false
	}
	if _, err := os.Stat(wm.TempOutputPath); err != nil {
		return 0, "", false
	}

	seconds := wm.ProcessedSeconds
	if seconds <= 0 && mi.DurationSeconds > 0 && wm.LastProgressPercent > 0 {
		seconds = wm.LastProgressPercent / 100 * mi.DurationSeconds
	}
	if seconds <= 0 {
		return 0, "", false
	}
	return seconds, wm.TempOutputPath, true
}

type outcomeKind int

const (
	outcomeNormal outcomeKind = iota
	outcomeCancelled
	outcomeWait
)

type streamOutcome struct {
	kind             outcomeKind
	lastPercent      float64
	effectiveElapsed float64
}

// streamStderr : line-by-line cooperative
// cancellation/wait checks, duration-header parsing, progress-sample
// parsing with duration-underestimation recovery, log-line appending,
// and progress=end detection.
func (sv *Supervisor) streamStderr(id uint64, cmd *exec.Cmd, stderr io.Reader, inputPath string, resumeFromSeconds, knownDuration float64) streamOutcome {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	total := knownDuration
	var lastPercent float64
	var lastEffectiveElapsed float64

	for scanner.Scan() {
		line := scanner.Text()

		if sv.Store.CancelRequested(id) {
			return streamOutcome{kind: outcomeCancelled}
		}
		if sv.Store.WaitRequested(id) {
			return streamOutcome{kind: outcomeWait, lastPercent: lastPercent, effectiveElapsed: lastEffectiveElapsed}
		}

		if total <= 0 {
			if m := durationHeaderRe.FindStringSubmatch(line); m != nil {
				if d, err := hmsToSeconds(m[1], m[2], m[3]); err == nil {
					total = d
					sv.Store.SetMediaInfo(inputPath, domain.MediaInfo{DurationSeconds: total})
				}
			}
		}

		if elapsed, ok := parseProgressSample(line); ok && total > 0 {
			effective := resumeFromSeconds + elapsed
			if effective > total*1.01 {
				total = effective
			}
			percent := clampPercent(effective / total * 100)
			if percent >= 100 {
				percent = 99.9
			}
			if percent > lastPercent {
				lastPercent = percent
				lastEffectiveElapsed = effective
				sv.Store.Mutate(id, func(j *domain.Job) {
					j.Progress = percent
				})
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			sv.Store.AppendLog(id, trimmed)
		}

		if strings.Contains(strings.ToLower(line), "progress=end") {
			sv.Store.Mutate(id, func(j *domain.Job) {
				if j.Status == domain.StatusProcessing {
					j.Progress = 100
				}
			})
		}
	}

	return streamOutcome{kind: outcomeNormal, lastPercent: lastPercent, effectiveElapsed: lastEffectiveElapsed}
}

func parseProgressSample(line string) (float64, bool) {
	if m := outTimeMsRe.FindStringSubmatch(line); m != nil {
		us, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return us / 1_000_000, true
		}
	}
	if m := outTimeRe.FindStringSubmatch(line); m != nil {
		if d, err := hmsToSeconds(m[1], m[2], m[3]); err == nil {
			return d, true
		}
	}
	if m := timeRe.FindStringSubmatch(line); m != nil {
		if d, err := hmsToSeconds(m[1], m[2], m[3]); err == nil {
			return d, true
		}
	}
	return 0, false
}

func hmsToSeconds(h, m, s string) (float64, error) {
	hh, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return 0, err
	}
	mm, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, err
	}
	ss, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return hh*3600 + mm*60 + ss, nil
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (sv *Supervisor) terminateAndWait(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	_ = cmd.Wait()
}

// failureHeadline for non-success exits.
func failureHeadline(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		if exitErr.ExitCode() >= 0 {
			return fmt.Sprintf("ffmpeg exited with non-zero status (exit code %d)", exitErr.ExitCode())
		}
		return "ffmpeg exited with non-zero status (terminated by signal)"
	}
	return fmt.Sprintf("Transcode failed: %v", err)
}

func (sv *Supervisor) fail(id uint64, headline string) {
	sv.Store.Mutate(id, func(j *domain.Job) {
		j.Status = domain.StatusFailed
		j.FailureReason = headline
		now := time.Now()
		j.EndTime = &now
		appendFailureLog(j, headline)
	})
}

func appendFailureLog(j *domain.Job, headline string) {
	j.Log = append(j.Log, headline)
	if len(j.Log) > domain.MaxLogLines {
		j.Log = j.Log[len(j.Log)-domain.MaxLogLines:]
	}
	j.LogTail += headline + "\n"
}

func (sv *Supervisor) recordSuccess(id uint64, job *domain.Job, finalPath string) {
	var outputSizeMB float64
	if info, err := os.Stat(finalPath); err == nil {
		outputSizeMB = float64(info.Size()) / (1024 * 1024)
	}

	var elapsed float64
	now := time.Now()
	sv.Store.Mutate(id, func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.Progress = 100
		j.EndTime = &now
		j.OutputSizeMB = outputSizeMB
		if j.StartTime != nil {
			elapsed = now.Sub(*j.StartTime).Seconds()
		}
	})

	if elapsed > 0 && job.OriginalSizeMB > 0 {
		if err := sv.Presets.RecordSuccess(job.PresetID, job.OriginalSizeMB, outputSizeMB, elapsed); err != nil {
			sv.Log.Warn().Uint64("job", id).Err(err).Msg("failed to persist preset stats")
		}
	}

	if batchID, ok := sv.Store.JobBatchID(id); ok {
		sv.Store.RecordBatchCompletion(batchID, time.Now().UnixMilli())
	}
}
