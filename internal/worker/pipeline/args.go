package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"loopmix/internal/profile"
	"loopmix/internal/worker/planner"
)

// loopInputArgs renders the input portion of a loop invocation.
// repeat plays the single input LoopCount times via -stream_loop (the flag
// counts additional plays, hence LoopCount-1); concatenate reads a demuxer
// list file with LoopCount entries.
func loopInputArgs(plan planner.RenderPlan, listPath string) []string {
	if plan.Strategy == planner.StrategyRepeat {
		return []string{"-stream_loop", strconv.Itoa(plan.LoopCount - 1), "-i", plan.InputPath}
	}
	return []string{"-f", "concat", "-safe", "0", "-i", listPath}
}

// buildVideoLoopArgs builds the video loop invocation. The scale filter is
// applied only when the probed height exceeds the profile cap; -2 keeps the
// aspect ratio and forces an even width, which the chroma subsampling of
// the target codec requires. Sources at or under the cap are never scaled.
func buildVideoLoopArgs(plan planner.RenderPlan, prof profile.Profile, sourceHeight int, listPath, outPath string) []string {
	args := []string{"-y"}
	args = append(args, loopInputArgs(plan, listPath)...)
	args = append(args, "-t", formatSeconds(plan.TargetSeconds), "-an")

	if sourceHeight > prof.MaxHeight {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", prof.MaxHeight))
	}

	args = append(args,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(prof.CRF),
		"-preset", prof.SpeedPreset,
		"-profile:v", prof.VideoProfile,
		"-level", prof.Level,
		"-pix_fmt", "yuv420p",
	)
	if prof.BFrames > 0 {
		args = append(args, "-bf", strconv.Itoa(prof.BFrames))
	}
	if prof.GOPSize > 0 {
		args = append(args, "-g", strconv.Itoa(prof.GOPSize))
	}

	return append(args, outPath)
}

// buildAudioLoopArgs builds the audio loop invocation. The stream is
// copied, not re-encoded; re-encoding happens once, at merge time.
func buildAudioLoopArgs(plan planner.RenderPlan, listPath, outPath string) []string {
	args := []string{"-y"}
	args = append(args, loopInputArgs(plan, listPath)...)
	args = append(args,
		"-t", formatSeconds(plan.TargetSeconds),
		"-vn",
		"-c:a", "copy",
	)
	return append(args, outPath)
}

// buildMergeArgs combines the looped tracks: video bitstream copied
// untouched, audio transcoded to the profile target, -shortest as the
// safety net against sub-second drift between the two looped tracks.
func buildMergeArgs(videoPath, audioPath string, prof profile.Profile, outPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", prof.AudioBitrate,
		"-shortest",
		"-movflags", "+faststart",
		outPath,
	}
}

// writeConcatList writes a concat demuxer list with count entries for the
// same input file.
func writeConcatList(listPath, inputPath string, count int) error {
	var b strings.Builder
	escaped := strings.ReplaceAll(inputPath, "'", `'\''`)
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return os.WriteFile(listPath, []byte(b.String()), 0o644)
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
