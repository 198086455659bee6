package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRational(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"30/1", 30.0},
		{"25/1", 25.0},
		{"30000/1001", 29.97002997002997},
		{"24000/1001", 23.976023976023978},
		{"60", 60.0},
		{"invalid", 0},
		{"0/0", 0},
		{"1/0", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseRational(tt.input)
			if tt.expected == 0 {
				assert.Equal(t, float64(0), result)
			} else {
				assert.InDelta(t, tt.expected, result, 0.001)
			}
		})
	}
}

func TestSimplify(t *testing.T) {
	result := &ProbeResult{
		Format: ProbeFormat{
			NumStreams: 2,
			Duration:   "30.500000",
			Size:       "1048576",
		},
		Streams: []ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, AvgFrameRate: "30000/1001"},
			{Index: 1, CodecType: "audio", CodecName: "aac", Channels: 2, SampleRate: "48000"},
		},
	}

	info := Simplify(result)

	assert.InDelta(t, 30.5, info.DurationSeconds, 0.001)
	assert.Equal(t, int64(1048576), info.SizeBytes)
	assert.Equal(t, 2, info.StreamCount)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 29.97, info.FrameRate, 0.01)
	assert.Equal(t, "aac", info.AudioCodec)
	assert.True(t, info.HasVideo())
	assert.True(t, info.HasAudio())
}

func TestSimplifyFirstStreamWins(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1280, Height: 720},
			{Index: 1, CodecType: "video", CodecName: "mjpeg", Width: 320, Height: 180},
		},
	}

	info := Simplify(result)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, 720, info.Height)
}

func TestSimplifyStreamDurationFallback(t *testing.T) {
	result := &ProbeResult{
		Format: ProbeFormat{NumStreams: 1},
		Streams: []ProbeStream{
			{Index: 0, CodecType: "audio", CodecName: "mp3", Duration: "20.04"},
		},
	}

	info := Simplify(result)
	assert.InDelta(t, 20.04, info.DurationSeconds, 0.001)
	assert.False(t, info.HasVideo())
	require.True(t, info.HasAudio())
}

func TestSimplifyAudioOnly(t *testing.T) {
	result := &ProbeResult{
		Format: ProbeFormat{NumStreams: 1, Duration: "12.0"},
		Streams: []ProbeStream{
			{Index: 0, CodecType: "audio", CodecName: "opus", Channels: 2},
		},
	}

	info := Simplify(result)
	assert.False(t, info.HasVideo())
	assert.Equal(t, 0, info.Width)
	assert.Equal(t, "opus", info.AudioCodec)
}
