// Package ffmpeg wraps the external ffmpeg/ffprobe binaries. Probing and
// transcoding both shell out; nothing in this package decodes media itself.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeResult contains the ffprobe output we consume.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container format information.
type ProbeFormat struct {
	Filename   string `json:"filename"`
	NumStreams int    `json:"nb_streams"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ProbeStream contains stream information.
type ProbeStream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"` // video, audio, subtitle, data
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	PixFmt       string `json:"pix_fmt,omitempty"`
	RFrameRate   string `json:"r_frame_rate,omitempty"`
	AvgFrameRate string `json:"avg_frame_rate,omitempty"`
	SampleRate   string `json:"sample_rate,omitempty"`
	Channels     int    `json:"channels,omitempty"`
	Duration     string `json:"duration,omitempty"`
	BitRate      string `json:"bit_rate,omitempty"`
}

// MediaInfo is the simplified view the planner and pipeline work with.
type MediaInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
	VideoCodec      string
	AudioCodec      string
	FrameRate       float64
	SizeBytes       int64
	StreamCount     int
}

// HasVideo reports whether a video stream was found.
func (m *MediaInfo) HasVideo() bool { return m.VideoCodec != "" }

// HasAudio reports whether an audio stream was found.
func (m *MediaInfo) HasAudio() bool { return m.AudioCodec != "" }

// Prober handles ffprobe invocations.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a new media prober.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Probe runs ffprobe against path and returns the raw result.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("probe timeout after %v", p.timeout)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	return &result, nil
}

// Inspect probes a file and returns the simplified info.
func (p *Prober) Inspect(ctx context.Context, path string) (*MediaInfo, error) {
	result, err := p.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return Simplify(result), nil
}

// Simplify converts a raw probe result into MediaInfo. The first stream of
// each type wins; loopmix sources carry a single track per kind.
func Simplify(result *ProbeResult) *MediaInfo {
	info := &MediaInfo{
		StreamCount: result.Format.NumStreams,
	}

	if result.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
			info.DurationSeconds = dur
		}
	}
	if result.Format.Size != "" {
		if sz, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
			info.SizeBytes = sz
		}
	}

	for _, stream := range result.Streams {
		switch stream.CodecType {
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = stream.CodecName
			info.Width = stream.Width
			info.Height = stream.Height
			if stream.AvgFrameRate != "" {
				info.FrameRate = parseRational(stream.AvgFrameRate)
			} else if stream.RFrameRate != "" {
				info.FrameRate = parseRational(stream.RFrameRate)
			}
			// Stream-level duration is a fallback for containers that only
			// report it per stream; a format-level duration keeps priority.
			if info.DurationSeconds == 0 && stream.Duration != "" {
				if dur, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
					info.DurationSeconds = dur
				}
			}
		case "audio":
			if info.AudioCodec != "" {
				continue
			}
			info.AudioCodec = stream.CodecName
			if info.DurationSeconds == 0 && stream.Duration != "" {
				if dur, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
					info.DurationSeconds = dur
				}
			}
		}
	}

	return info
}

// parseRational parses a frame-rate fraction like "30000/1001" or "25/1".
// Plain numbers are accepted too. Anything else evaluates to 0; the string
// is never handed to a generic expression evaluator.
func parseRational(fr string) float64 {
	parts := strings.Split(fr, "/")
	if len(parts) != 2 {
		if f, err := strconv.ParseFloat(fr, 64); err == nil {
			return f
		}
		return 0
	}

	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}

	return num / den
}
