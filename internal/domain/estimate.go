package domain

import "strings"

// EstimateProcessingSeconds projects encode time for sizeMB from
// preset's historical average seconds-per-MB, adjusted for encoder and
// speed. Returns nil when the preset has no usable history yet.
func EstimateProcessingSeconds(preset Preset, sizeMB float64) *float64 {
	if preset.Stats.TotalInputSizeMB <= 0 || preset.Stats.TotalTimeSeconds <= 0 {
		return nil
	}

	base := preset.Stats.TotalTimeSeconds / preset.Stats.TotalInputSizeMB
	factor := 1.0

	if preset.Video.Encoder == EncoderAV1Software {
		factor *= 1.5
	}
	if preset.Video.Encoder == EncoderHEVCHardwareNVIDIA {
		factor *= 0.9
	}
	speed := strings.ToLower(preset.Video.Speed)
	switch {
	case strings.Contains(speed, "veryslow"):
		factor *= 1.6
	case strings.Contains(speed, "slow"):
		factor *= 1.3
	case strings.Contains(speed, "fast"):
		factor *= 0.8
	}
	if preset.Video.TwoPass == TwoPassOne || preset.Video.TwoPass == TwoPassTwo {
		factor *= 2.0
	}

	result := sizeMB * base * factor
	if result <= 0 {
		return nil
	}
	return &result
}
