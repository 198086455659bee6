package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopmix/internal/profile"
	"loopmix/internal/worker/planner"
)

func testProfile() profile.Profile {
	return profile.Profile{
		Name:         "balanced-720",
		CRF:          23,
		SpeedPreset:  "medium",
		MaxHeight:    720,
		AudioBitrate: "128k",
		VideoProfile: "main",
		Level:        "4.0",
		BFrames:      2,
		GOPSize:      240,
	}
}

func argsAfter(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, a := range args {
		if a == flag {
			require.Less(t, i+1, len(args), "flag %s has no value", flag)
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}

func TestVideoLoopArgsRepeatStrategy(t *testing.T) {
	plan := planner.RenderPlan{
		InputPath:     "/s/video.mp4",
		TargetSeconds: 600,
		LoopCount:     120,
		Strategy:      planner.StrategyRepeat,
	}
	args := buildVideoLoopArgs(plan, testProfile(), 720, "/s/list.txt", "/s/out.mp4")

	// -stream_loop counts additional plays, so 120 total plays is 119.
	assert.Equal(t, "119", argsAfter(t, args, "-stream_loop"))
	assert.Equal(t, "/s/video.mp4", argsAfter(t, args, "-i"))
	assert.Equal(t, "600.000", argsAfter(t, args, "-t"))
	assert.NotContains(t, args, "concat")
	assert.Equal(t, "/s/out.mp4", args[len(args)-1])
}

func TestVideoLoopArgsConcatStrategy(t *testing.T) {
	plan := planner.RenderPlan{
		InputPath:     "/s/video.mp4",
		TargetSeconds: 60,
		LoopCount:     2,
		Strategy:      planner.StrategyConcatenate,
	}
	args := buildVideoLoopArgs(plan, testProfile(), 720, "/s/list.txt", "/s/out.mp4")

	assert.Equal(t, "concat", argsAfter(t, args, "-f"))
	assert.Equal(t, "/s/list.txt", argsAfter(t, args, "-i"))
	assert.Equal(t, "60.000", argsAfter(t, args, "-t"))
	assert.NotContains(t, args, "-stream_loop")
}

func TestVideoLoopArgsCarryProfileParams(t *testing.T) {
	plan := planner.RenderPlan{InputPath: "in.mp4", TargetSeconds: 60, LoopCount: 2, Strategy: planner.StrategyConcatenate}
	args := buildVideoLoopArgs(plan, testProfile(), 720, "list.txt", "out.mp4")

	assert.Equal(t, "libx264", argsAfter(t, args, "-c:v"))
	assert.Equal(t, "23", argsAfter(t, args, "-crf"))
	assert.Equal(t, "medium", argsAfter(t, args, "-preset"))
	assert.Equal(t, "main", argsAfter(t, args, "-profile:v"))
	assert.Equal(t, "4.0", argsAfter(t, args, "-level"))
	assert.Equal(t, "2", argsAfter(t, args, "-bf"))
	assert.Equal(t, "240", argsAfter(t, args, "-g"))
	// Audio is dropped at the loop stage; it rides in from the other branch.
	assert.Contains(t, args, "-an")
}

func TestScaleFilterGuard(t *testing.T) {
	plan := planner.RenderPlan{InputPath: "in.mp4", TargetSeconds: 60, LoopCount: 2, Strategy: planner.StrategyConcatenate}
	prof := testProfile()

	t.Run("above cap scales down", func(t *testing.T) {
		args := buildVideoLoopArgs(plan, prof, 1080, "list.txt", "out.mp4")
		// -2 keeps aspect ratio and forces an even width.
		assert.Equal(t, "scale=-2:720", argsAfter(t, args, "-vf"))
	})

	t.Run("at cap is untouched", func(t *testing.T) {
		args := buildVideoLoopArgs(plan, prof, 720, "list.txt", "out.mp4")
		assert.NotContains(t, args, "-vf")
	})

	t.Run("below cap is never upscaled", func(t *testing.T) {
		args := buildVideoLoopArgs(plan, prof, 480, "list.txt", "out.mp4")
		assert.NotContains(t, args, "-vf")
	})
}

func TestAudioLoopArgsStreamCopy(t *testing.T) {
	plan := planner.RenderPlan{
		InputPath:     "/s/audio.mp3",
		TargetSeconds: 60,
		LoopCount:     3,
		Strategy:      planner.StrategyConcatenate,
	}
	args := buildAudioLoopArgs(plan, "/s/alist.txt", "/s/aout.mp3")

	assert.Equal(t, "copy", argsAfter(t, args, "-c:a"))
	assert.Equal(t, "60.000", argsAfter(t, args, "-t"))
	assert.Contains(t, args, "-vn")
	assert.NotContains(t, args, "-c:v")
}

func TestMergeArgs(t *testing.T) {
	args := buildMergeArgs("/s/v.mp4", "/s/a.mp3", testProfile(), "/s/final.mp4")

	// Video bitstream untouched, audio re-encoded, shortest-stream trim.
	assert.Equal(t, "copy", argsAfter(t, args, "-c:v"))
	assert.Equal(t, "aac", argsAfter(t, args, "-c:a"))
	assert.Equal(t, "128k", argsAfter(t, args, "-b:a"))
	assert.Contains(t, args, "-shortest")
	assert.Equal(t, "0:v:0", args[indexOf(t, args, "-map")+1])
	assert.Equal(t, "/s/final.mp4", args[len(args)-1])
}

func indexOf(t *testing.T, args []string, flag string) int {
	t.Helper()
	for i, a := range args {
		if a == flag {
			return i
		}
	}
	t.Fatalf("flag %s not found", flag)
	return -1
}

// End-to-end arg-level scenario: 30s video and 20s audio to one minute.
func TestOneMinuteScenario(t *testing.T) {
	prof := testProfile()

	vplan, err := planner.Plan("/s/video.mp4", 30, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, vplan.LoopCount)
	assert.Equal(t, planner.StrategyConcatenate, vplan.Strategy)

	aplan, err := planner.Plan("/s/audio.mp3", 20, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, aplan.LoopCount)
	assert.Equal(t, planner.StrategyConcatenate, aplan.Strategy)

	vargs := buildVideoLoopArgs(vplan, prof, 720, "/s/vlist.txt", "/s/v.mp4")
	aargs := buildAudioLoopArgs(aplan, "/s/alist.txt", "/s/a.mp3")
	margs := buildMergeArgs("/s/v.mp4", "/s/a.mp3", prof, "/s/final.mp4")

	// Both tracks trimmed to exactly 60s, merge copies video and
	// re-encodes audio at the profile bitrate.
	assert.Equal(t, "60.000", argsAfter(t, vargs, "-t"))
	assert.Equal(t, "60.000", argsAfter(t, aargs, "-t"))
	assert.Equal(t, "copy", argsAfter(t, margs, "-c:v"))
	assert.Equal(t, "128k", argsAfter(t, margs, "-b:a"))
	assert.Contains(t, margs, "-shortest")
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")

	require.NoError(t, writeConcatList(listPath, "/s/video.mp4", 3))

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Equal(t, "file '/s/video.mp4'", line)
	}
}

func TestWriteConcatListEscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")

	require.NoError(t, writeConcatList(listPath, "/s/it's a clip.mp4", 1))

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "file '/s/it's")
}

func TestRemovePathsIdempotent(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "exists.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))
	missing := filepath.Join(dir, "never_created.mp4")

	// First pass removes what exists, tolerates what doesn't.
	RemovePaths(existing, missing, "")
	_, err := os.Stat(existing)
	assert.True(t, os.IsNotExist(err))

	// Second pass on already-gone paths must not panic or error.
	RemovePaths(existing, missing)
}

func TestAudioExt(t *testing.T) {
	assert.Equal(t, ".mp3", audioExt("/s/track.mp3"))
	assert.Equal(t, ".wav", audioExt("/s/track.wav"))
	assert.Equal(t, ".m4a", audioExt("/s/track"))
}
