// Package argscompose implements the pure preset -> ffmpeg argument
// vector mapping: an ordered, side-effect-free argument builder.
package argscompose

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/five82/ffgo/internal/domain"
)

// Compose is a pure function of its inputs: identical inputs yield
// identical argument vectors.
func Compose(preset domain.Preset, input, output string) []string {
	if preset.AdvancedOverride && strings.TrimSpace(preset.AdvancedTemplate) != "" {
		return composeAdvanced(preset.AdvancedTemplate, input, output)
	}

	var args []string

	// 1. Prepend -progress pipe:2 and -nostdin.
	args = append(args, "-progress", "pipe:2", "-nostdin")

	// 2. Global overwrite/log-level/banner/report.
	args = appendGlobal(args, preset)

	// 3. Before-input timeline.
	if preset.Timeline.SeekMode == domain.SeekBeforeInput {
		args = append(args, "-ss", formatSeconds(preset.Timeline.SeekPosition))
		if preset.Timeline.AccurateSeek {
			args = append(args, "-accurate_seek")
		}
	}

	// 4. -i <input>.
	args = append(args, "-i", input)

	// 5. After-input timeline.
	accurateSeekEmitted := preset.Timeline.SeekMode == domain.SeekBeforeInput && preset.Timeline.AccurateSeek
	if preset.Timeline.SeekMode == domain.SeekAfterInput {
		args = append(args, "-ss", formatSeconds(preset.Timeline.SeekPosition))
	}
	switch preset.Timeline.DurationMode {
	case domain.DurationLength:
		if preset.Timeline.Duration > 0 {
			args = append(args, "-t", formatSeconds(preset.Timeline.Duration))
		}
	case domain.DurationUntilTime:
		if preset.Timeline.Duration > 0 {
			args = append(args, "-to", formatSeconds(preset.Timeline.Duration))
		}
	}
	if preset.Timeline.SeekMode == domain.SeekAfterInput && preset.Timeline.AccurateSeek && !accurateSeekEmitted {
		args = append(args, "-accurate_seek")
	}

	// 6. Stream mapping.
	args = appendMapping(args, preset.Mapping)

	// 7. Video codec and rate control.
	videoIsCopy := preset.Video.Encoder == domain.EncoderStreamCopy
	args = appendVideo(args, preset.Video, videoIsCopy)

	// 8. Audio codec.
	audioIsCopy := preset.Audio.Codec == domain.AudioStreamCopy
	args = appendAudio(args, preset.Audio, audioIsCopy)

	// 9. Video filters (skipped entirely for stream-copy video).
	if !videoIsCopy {
		if vf := buildVideoFilterChain(preset, input); vf != "" {
			args = append(args, "-vf", vf)
		}
	}

	// 10. Audio filters (skipped for stream-copy audio).
	if !audioIsCopy {
		if af := buildAudioFilterChain(preset.Audio, preset.Filters.AFChain); af != "" {
			args = append(args, "-af", af)
		}
	}

	// 11. Filter-complex (only when video is not stream-copy).
	if !videoIsCopy && preset.Filters.FilterComplex != "" {
		args = append(args, "-filter_complex", preset.Filters.FilterComplex)
	}

	// 12. Subtitles.
	if preset.Subtitles == domain.SubtitleDrop {
		args = append(args, "-sn")
	}

	// 13. Container.
	if preset.Container != "" {
		args = append(args, "-f", preset.Container)
	}
	if len(preset.MuxerFlags) > 0 {
		args = append(args, "-movflags", strings.Join(preset.MuxerFlags, "+"))
	}

	// 14. Hardware.
	if preset.HWAccel != "" {
		args = append(args, "-hwaccel", preset.HWAccel)
	}
	if preset.HWAccelDevice != "" {
		args = append(args, "-hwaccel_device", preset.HWAccelDevice)
	}
	if preset.HWAccelOutputFormat != "" {
		args = append(args, "-hwaccel_output_format", preset.HWAccelOutputFormat)
	}
	for _, bsf := range preset.BitstreamFilters {
		args = append(args, "-bsf", bsf)
	}

	// 15. Output.
	args = append(args, output)

	return args
}

func composeAdvanced(template, input, output string) []string {
	rendered := strings.ReplaceAll(template, "INPUT", input)
	rendered = strings.ReplaceAll(rendered, "OUTPUT", output)
	args := strings.Fields(rendered)

	hasProgress, hasNostdin := false, false
	for i, a := range args {
		if a == "-progress" && i+1 < len(args) {
			hasProgress = true
		}
		if a == "-nostdin" {
			hasNostdin = true
		}
	}
	if !hasNostdin {
		args = append([]string{"-nostdin"}, args...)
	}
	if !hasProgress {
		args = append([]string{"-progress", "pipe:2"}, args...)
	}
	return args
}

func appendGlobal(args []string, preset domain.Preset) []string {
	switch preset.Global.OverwriteBehavior {
	case domain.OverwriteNever:
		args = append(args, "-n")
	case domain.OverwriteAsk:
		// ffmpeg's own default prompt behavior; emit no flag.
	default:
		args = append(args, "-y")
	}
	if preset.Global.LogLevel != "" {
		args = append(args, "-loglevel", preset.Global.LogLevel)
	}
	if preset.Global.HideBanner {
		args = append(args, "-hide_banner")
	}
	if preset.Global.EnableReport {
		args = append(args, "-report")
	}
	return args
}

func appendMapping(args []string, m domain.StreamMapping) []string {
	emittedMap := false
	for _, spec := range m.Maps {
		args = append(args, "-map", spec)
		emittedMap = true
	}
	for _, d := range m.Dispositions {
		args = append(args, "-disposition", d)
	}
	for _, kv := range m.Metadata {
		if kv == "" {
			continue
		}
		args = append(args, "-metadata", kv)
	}
	if !emittedMap {
		args = append(args, "-map", "0")
	}
	return args
}

func appendVideo(args []string, v domain.VideoSpec, isCopy bool) []string {
	if isCopy {
		return append(args, "-c:v", "copy")
	}

	args = append(args, "-c:v", encoderName(v.Encoder))

	switch v.RateControl {
	case domain.RateControlCQ:
		args = append(args, "-crf", strconv.Itoa(v.Quality))
	case domain.RateControlCCQ:
		args = append(args, "-cq", strconv.Itoa(v.Quality))
	case domain.RateControlCbr, domain.RateControlVbr:
		// Legacy modes treated identically to the bitrate family.
		args = appendBitrateFamily(args, v)
	default:
		args = appendBitrateFamily(args, v)
	}

	if v.Speed != "" {
		args = append(args, "-preset", v.Speed)
	}
	if v.Tune != "" {
		args = append(args, "-tune", v.Tune)
	}
	if v.Profile != "" {
		args = append(args, "-profile:v", v.Profile)
	}
	if v.Level != "" {
		args = append(args, "-level", v.Level)
	}
	if v.GOPSize > 0 {
		args = append(args, "-g", strconv.Itoa(v.GOPSize))
	}
	if v.BFrames > 0 {
		args = append(args, "-bf", strconv.Itoa(v.BFrames))
	}
	if v.PixFmt != "" {
		args = append(args, "-pix_fmt", v.PixFmt)
	}
	return args
}

func appendBitrateFamily(args []string, v domain.VideoSpec) []string {
	if v.BitrateKbps > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", v.BitrateKbps))
	}
	if v.MaxBitrateKbps > 0 {
		args = append(args, "-maxrate", fmt.Sprintf("%dk", v.MaxBitrateKbps))
	}
	if v.BufSizeKbits > 0 {
		args = append(args, "-bufsize", fmt.Sprintf("%dk", v.BufSizeKbits))
	}
	if v.TwoPass == domain.TwoPassOne {
		args = append(args, "-pass", "1")
	} else if v.TwoPass == domain.TwoPassTwo {
		args = append(args, "-pass", "2")
	}
	return args
}

func encoderName(e domain.VideoEncoder) string {
	switch e {
	case domain.EncoderH264Software:
		return "libx264"
	case domain.EncoderHEVCHardwareNVIDIA:
		return "hevc_nvenc"
	case domain.EncoderAV1Software:
		return "libsvtav1"
	default:
		return "copy"
	}
}

func appendAudio(args []string, a domain.AudioSpec, isCopy bool) []string {
	if isCopy {
		return append(args, "-c:a", "copy")
	}
	args = append(args, "-c:a", "aac")
	if a.BitrateKbps > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", a.BitrateKbps))
	}
	if a.SampleRateHz > 0 {
		args = append(args, "-ar", strconv.Itoa(a.SampleRateHz))
	}
	if a.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(a.Channels))
	}
	if a.ChannelLayout != "" {
		args = append(args, "-channel_layout", a.ChannelLayout)
	}
	return args
}

func buildVideoFilterChain(preset domain.Preset, input string) string {
	var parts []string
	if preset.Filters.Scale != "" {
		parts = append(parts, fmt.Sprintf("scale=%s", preset.Filters.Scale))
	}
	if preset.Filters.Crop != "" {
		parts = append(parts, fmt.Sprintf("crop=%s", preset.Filters.Crop))
	}
	if preset.Filters.FPS != "" {
		parts = append(parts, fmt.Sprintf("fps=%s", preset.Filters.FPS))
	}
	if preset.Subtitles == domain.SubtitleBurnIn {
		parts = append(parts, fmt.Sprintf("subtitles=%s", escapeSubtitlesPath(input)))
	}
	if preset.Filters.VFChain != "" {
		parts = append(parts, preset.Filters.VFChain)
	}
	return strings.Join(parts, ",")
}

// escapeSubtitlesPath escapes a path for embedding inside an ffmpeg
// filtergraph expression, where ':' and '\' are filtergraph metacharacters.
func escapeSubtitlesPath(path string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	return "'" + r.Replace(path) + "'"
}

func loudnormDefaults(profile domain.LoudnessProfile) (i, lra, tp float64) {
	switch profile {
	case domain.LoudnessCNBroadcast:
		return -24, 7, -2
	case domain.LoudnessEBUR128:
		return -23, 7, -1
	default:
		return -24, 7, -2
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func buildAudioFilterChain(a domain.AudioSpec, afChain string) string {
	var parts []string
	if a.Loudness != "" && a.Loudness != domain.LoudnessNone {
		i, lra, tp := loudnormDefaults(a.Loudness)
		if a.LoudnessTargetI != nil {
			i = clamp(*a.LoudnessTargetI, -36, -10)
		}
		if a.LoudnessRangeLRA != nil {
			lra = clamp(*a.LoudnessRangeLRA, 1, 20)
		}
		if a.LoudnessTruePeakTP != nil {
			tp = *a.LoudnessTruePeakTP
			if tp > -0.1 {
				tp = -0.1
			}
		}
		parts = append(parts, fmt.Sprintf("loudnorm=I=%s:LRA=%s:TP=%s:print_format=summary",
			formatNumber(i), formatNumber(lra), formatNumber(tp)))
	}
	if afChain != "" {
		parts = append(parts, afChain)
	}
	return strings.Join(parts, ",")
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
