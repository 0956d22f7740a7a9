// Package mediainfo probes input files with ffprobe and parses frame
// rate expressions.
package mediainfo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/five82/ffgo/internal/domain"
)

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// Probe invokes ffprobe against path and returns the populated MediaInfo
// fields.
func Probe(ctx context.Context, ffprobePath, path string) (domain.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return domain.MediaInfo{}, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return domain.MediaInfo{}, fmt.Errorf("ffprobe JSON decode failed for %s: %w", path, err)
	}

	mi := domain.MediaInfo{}
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		mi.DurationSeconds = d
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if mi.VideoCodec == "" {
				mi.VideoCodec = s.CodecName
			}
			if mi.Width == 0 {
				mi.Width = s.Width
				mi.Height = s.Height
			}
			if mi.FrameRate == 0 {
				fr := s.AvgFrameRate
				if fr == "" || fr == "0/0" {
					fr = s.RFrameRate
				}
				if parsed, err := ParseFrameRate(fr); err == nil {
					mi.FrameRate = parsed
				}
			}
		case "audio":
			if mi.AudioCodec == "" {
				mi.AudioCodec = s.CodecName
			}
		}
	}

	if info, err := os.Stat(path); err == nil {
		mi.SizeBytes = info.Size()
	}

	return mi, nil
}

// ParseFrameRate parses a frame rate expressed as "num/den" or a plain
// decimal, rejecting den <= 0.
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty frame rate")
	}
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		numStr, denStr := s[:idx], s[idx+1:]
		num, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate numerator %q: %w", numStr, err)
		}
		den, err := strconv.ParseFloat(denStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frame rate denominator %q: %w", denStr, err)
		}
		if den <= 0 {
			return 0, fmt.Errorf("non-positive frame rate denominator: %q", s)
		}
		return num / den, nil
	}
	return strconv.ParseFloat(s, 64)
}
