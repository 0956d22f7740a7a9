package argscompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/ffgo/internal/domain"
)

func basePreset() domain.Preset {
	return domain.Preset{
		ID:   "p1",
		Name: "test",
		Video: domain.VideoSpec{
			Encoder:     domain.EncoderAV1Software,
			RateControl: domain.RateControlCQ,
			Quality:     30,
			Speed:       "6",
		},
		Audio: domain.AudioSpec{
			Codec:       domain.AudioAAC,
			BitrateKbps: 128,
		},
		Subtitles: domain.SubtitleKeep,
		Container: "mp4",
	}
}

func TestComposeIsPure(t *testing.T) {
	preset := basePreset()
	a := Compose(preset, "in.mkv", "out.mp4")
	b := Compose(preset, "in.mkv", "out.mp4")
	assert.Equal(t, a, b, "identical inputs must yield identical argument vectors")
}

func TestComposeRateControlMutualExclusivity(t *testing.T) {
	cases := []struct {
		name string
		rc   domain.RateControlMode
		want string
	}{
		{"cq", domain.RateControlCQ, "-crf"},
		{"ccq", domain.RateControlCCQ, "-cq"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			preset := basePreset()
			preset.Video.RateControl = tc.rc
			args := Compose(preset, "in.mkv", "out.mp4")

			require.Contains(t, args, tc.want)
			for _, other := range []string{"-crf", "-cq"} {
				if other == tc.want {
					continue
				}
				assert.NotContains(t, args, other, "rate control flags must be mutually exclusive")
			}
			assert.NotContains(t, args, "-b:v", "quality-mode presets must not also emit a target bitrate")
		})
	}
}

func TestComposeBitrateFamilyOmitsQualityFlags(t *testing.T) {
	preset := basePreset()
	preset.Video.RateControl = domain.RateControlVbr
	preset.Video.BitrateKbps = 4000
	preset.Video.MaxBitrateKbps = 6000

	args := Compose(preset, "in.mkv", "out.mp4")

	assert.NotContains(t, args, "-crf")
	assert.NotContains(t, args, "-cq")
	require.Contains(t, args, "-b:v")
	assert.Contains(t, args, "4000k")
	require.Contains(t, args, "-maxrate")
	assert.Contains(t, args, "6000k")
}

func TestComposeVideoStreamCopySkipsFilters(t *testing.T) {
	preset := basePreset()
	preset.Video.Encoder = domain.EncoderStreamCopy
	preset.Filters.Scale = "1280:-2"
	preset.Filters.FilterComplex = "[0:v]split[a][b]"

	args := Compose(preset, "in.mkv", "out.mp4")

	require.Contains(t, args, "-c:v")
	idx := indexOf(args, "-c:v")
	require.Greater(t, len(args), idx+1)
	assert.Equal(t, "copy", args[idx+1])
	assert.NotContains(t, args, "-vf", "stream-copy video must skip the filter chain entirely")
	assert.NotContains(t, args, "-filter_complex", "stream-copy video must skip filter_complex")
}

func TestComposeAudioStreamCopySkipsFilters(t *testing.T) {
	preset := basePreset()
	preset.Audio.Codec = domain.AudioStreamCopy
	preset.Audio.Loudness = domain.LoudnessEBUR128

	args := Compose(preset, "in.mkv", "out.mp4")

	idx := indexOf(args, "-c:a")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "copy", args[idx+1])
	assert.NotContains(t, args, "-af", "stream-copy audio must skip loudnorm/filter chain")
}

func TestComposeSubtitleStrategyExclusivity(t *testing.T) {
	t.Run("drop emits -sn and skips burn-in filter", func(t *testing.T) {
		preset := basePreset()
		preset.Subtitles = domain.SubtitleDrop
		args := Compose(preset, "in.mkv", "out.mp4")
		assert.Contains(t, args, "-sn")
		assert.NotContains(t, args, "-vf")
	})

	t.Run("burn-in adds a subtitles filter and omits -sn", func(t *testing.T) {
		preset := basePreset()
		preset.Subtitles = domain.SubtitleBurnIn
		args := Compose(preset, "in.mkv", "out.mp4")
		assert.NotContains(t, args, "-sn")
		idx := indexOf(args, "-vf")
		require.GreaterOrEqual(t, idx, 0)
		assert.Contains(t, args[idx+1], "subtitles=")
	})

	t.Run("keep emits neither -sn nor a subtitles filter", func(t *testing.T) {
		preset := basePreset()
		preset.Subtitles = domain.SubtitleKeep
		args := Compose(preset, "in.mkv", "out.mp4")
		assert.NotContains(t, args, "-sn")
		assert.NotContains(t, args, "-vf")
	})
}

func TestComposeBeforeInputSeek(t *testing.T) {
	preset := basePreset()
	preset.Timeline.SeekMode = domain.SeekBeforeInput
	preset.Timeline.SeekPosition = 12.5
	preset.Timeline.AccurateSeek = true

	args := Compose(preset, "in.mkv", "out.mp4")

	ssIdx := indexOf(args, "-ss")
	iIdx := indexOf(args, "-i")
	require.GreaterOrEqual(t, ssIdx, 0)
	require.GreaterOrEqual(t, iIdx, 0)
	assert.Less(t, ssIdx, iIdx, "before-input seek must precede -i")
	assert.Equal(t, "12.500", args[ssIdx+1])
	assert.Contains(t, args, "-accurate_seek")
}

func TestComposeAfterInputSeek(t *testing.T) {
	preset := basePreset()
	preset.Timeline.SeekMode = domain.SeekAfterInput
	preset.Timeline.SeekPosition = 5
	preset.Timeline.DurationMode = domain.DurationLength
	preset.Timeline.Duration = 20

	args := Compose(preset, "in.mkv", "out.mp4")

	ssIdx := indexOf(args, "-ss")
	iIdx := indexOf(args, "-i")
	require.GreaterOrEqual(t, ssIdx, 0)
	require.GreaterOrEqual(t, iIdx, 0)
	assert.Greater(t, ssIdx, iIdx, "after-input seek must follow -i")
	require.Contains(t, args, "-t")
}

func TestComposeAdvancedOverrideSubstitutesPlaceholders(t *testing.T) {
	preset := basePreset()
	preset.AdvancedOverride = true
	preset.AdvancedTemplate = "-i INPUT -c:v libx264 OUTPUT"

	args := Compose(preset, "in.mkv", "out.mp4")

	assert.Contains(t, args, "in.mkv")
	assert.Contains(t, args, "out.mp4")
	assert.Contains(t, args, "-nostdin")
	assert.Contains(t, args, "-progress")
}

func TestComposeDefaultsToMapZeroWithoutExplicitMaps(t *testing.T) {
	preset := basePreset()
	args := Compose(preset, "in.mkv", "out.mp4")
	idx := indexOf(args, "-map")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "0", args[idx+1])
}

func TestComposeGlobalOverwriteBehaviorMapsToLiteralFlags(t *testing.T) {
	cases := []struct {
		name    string
		b       domain.OverwriteBehavior
		want    string
		mustNot []string
	}{
		{"unset defaults to overwrite", domain.OverwriteUnset, "-y", []string{"-n"}},
		{"overwrite", domain.OverwriteAlways, "-y", []string{"-n"}},
		{"no-overwrite", domain.OverwriteNever, "-n", []string{"-y"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			preset := basePreset()
			preset.Global.OverwriteBehavior = tc.b
			args := Compose(preset, "in.mkv", "out.mp4")
			assert.Contains(t, args, tc.want)
			for _, absent := range tc.mustNot {
				assert.NotContains(t, args, absent)
			}
		})
	}

	t.Run("ask emits neither -y nor -n", func(t *testing.T) {
		preset := basePreset()
		preset.Global.OverwriteBehavior = domain.OverwriteAsk
		args := Compose(preset, "in.mkv", "out.mp4")
		assert.NotContains(t, args, "-y")
		assert.NotContains(t, args, "-n")
	})
}

func TestComposeGlobalLogLevelBannerAndReport(t *testing.T) {
	preset := basePreset()
	preset.Global.LogLevel = "error"
	preset.Global.HideBanner = true
	preset.Global.EnableReport = true

	args := Compose(preset, "in.mkv", "out.mp4")

	idx := indexOf(args, "-loglevel")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "error", args[idx+1])
	assert.Contains(t, args, "-hide_banner")
	assert.Contains(t, args, "-report")
}

func TestComposeMetadataIsEmittedInDeclaredOrder(t *testing.T) {
	preset := basePreset()
	preset.Mapping.Metadata = []string{"title=First", "comment=Second", "artist=Third"}

	var want []string
	for _, kv := range preset.Mapping.Metadata {
		want = append(want, "-metadata", kv)
	}

	for i := 0; i < 20; i++ {
		args := Compose(preset, "in.mkv", "out.mp4")
		var got []string
		for i, a := range args {
			if a == "-metadata" {
				got = append(got, a, args[i+1])
			}
		}
		require.Equal(t, want, got, "metadata flags must preserve declared order across repeated composition")
	}
}

func indexOf(args []string, target string) int {
	for i, a := range args {
		if a == target {
			return i
		}
	}
	return -1
}
