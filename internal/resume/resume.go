// Package resume implements the effective-preset derivation for
// resumed runs and the concat-filter finalize step joining a paused
// run's previous segment with its continuation.
package resume

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/five82/ffgo/internal/domain"
)

// DeriveEffectivePreset injects a before-input seek equal to
// resumeFromSeconds, with accurate-seek enabled, only when the preset's
// timeline has no seek or a before-input seek. A preset with an
// after-input seek disables automatic resume; no hybrid seek is
// synthesized in that case.
func DeriveEffectivePreset(preset domain.Preset, resumeFromSeconds float64) (effective domain.Preset, resumeEnabled bool) {
	if preset.Timeline.SeekMode == domain.SeekAfterInput {
		return preset, false
	}

	effective = preset
	effective.Timeline.SeekMode = domain.SeekBeforeInput
	effective.Timeline.SeekPosition = resumeFromSeconds
	effective.Timeline.AccurateSeek = true
	return effective, true
}

// concatExpr is the stream-copy concat filter graph joining exactly two
// segments.
const concatExpr = "[0:v][0:a][1:v][1:a]concat=n=2:v=1:a=1[v][a]"

// Finalize concatenates the previous segment and the current run's temp
// output into a ".concat.tmp.<ext>" sibling, then renames it to
// finalPath. Both segments are unlinked only after a successful rename.
func Finalize(ctx context.Context, ffmpegPath, previousSegment, currentSegment, finalPath string) error {
	ext := extOf(finalPath)
	concatTmp := strings.TrimSuffix(finalPath, ext) + ".concat.tmp" + ext

	args := []string{
		"-y", "-nostdin",
		"-i", previousSegment,
		"-i", currentSegment,
		"-filter_complex", concatExpr,
		"-map", "[v]", "-map", "[a]",
		"-c:v", "copy", "-c:a", "copy",
		concatTmp,
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(concatTmp)
		return fmt.Errorf("ffmpeg concat failed when resuming from partial output: %s: %w", strings.TrimSpace(string(out)), err)
	}

	if err := os.Rename(concatTmp, finalPath); err != nil {
		_ = os.Remove(concatTmp)
		return fmt.Errorf("ffmpeg concat failed when resuming from partial output: %w", err)
	}

	_ = os.Remove(previousSegment)
	_ = os.Remove(currentSegment)
	return nil
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
