// Package encoder runs ffmpeg and ffprobe for size-targeted encodes.
package encoder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"mediashrink/internal/infra"
)

// FFmpeg wraps the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *infra.Logger
}

// NewFFmpeg builds the adapter. Empty paths resolve from PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string, logger *infra.Logger) *FFmpeg {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		BitRate   string `json:"bit_rate"`
	} `json:"streams"`
}

// Probe reads duration, size and bitrates of a media file.
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (Probe, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(out)
}

func parseProbe(raw []byte) (Probe, error) {
	var parsed probeOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Probe{}, fmt.Errorf("encoder: decode ffprobe output: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil || duration <= 0 {
		return Probe{}, fmt.Errorf("encoder: duration missing")
	}
	probe := Probe{DurationSeconds: duration}
	for _, s := range parsed.Streams {
		kbps := parseKbps(s.BitRate)
		switch s.CodecType {
		case "video":
			if probe.Width == 0 {
				probe.Width, probe.Height = s.Width, s.Height
				probe.VideoKbps = kbps
			}
		case "audio":
			if probe.AudioKbps == 0 {
				probe.AudioKbps = kbps
			}
		}
	}
	if probe.VideoKbps == 0 && probe.Width > 0 {
		if total := parseKbps(parsed.Format.BitRate); total > probe.AudioKbps {
			probe.VideoKbps = total - probe.AudioKbps
		}
	}
	return probe, nil
}

func parseKbps(bitsPerSecond string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(bitsPerSecond), 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v / 1000
}

// Encode runs a single-pass bitrate-targeted encode of inputPath into
// outputPath. onProgress receives increasing percentages below 100 while
// ffmpeg runs; durationSeconds scales them.
func (f *FFmpeg) Encode(ctx context.Context, inputPath, outputPath string, plan Plan, durationSeconds float64, onProgress func(int)) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	tmpPath := outputPath + ".tmp" + filepath.Ext(outputPath)
	_ = os.Remove(tmpPath)

	args := buildArgs(inputPath, tmpPath, plan)
	f.logger.Debug().Strs("args", args).Msg("encoder: starting ffmpeg")

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return err
	}
	readProgress(stdout, int64(durationSeconds*1_000_000), onProgress)

	if err := cmd.Wait(); err != nil {
		_ = os.Remove(tmpPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, lastLines(stderr.String(), 5))
	}
	_ = os.Remove(outputPath)
	return os.Rename(tmpPath, outputPath)
}

func buildArgs(inputPath, outputPath string, plan Plan) []string {
	args := []string{"-y", "-i", inputPath, "-sn", "-progress", "pipe:1", "-nostats"}
	if plan.AudioOnly {
		args = append(args, "-vn")
	} else {
		kbps := int(plan.VideoKbps)
		args = append(args,
			"-map", "0:v:0?",
			"-c:v", plan.VideoCodec,
			"-b:v", fmt.Sprintf("%dk", kbps),
			"-maxrate", fmt.Sprintf("%dk", kbps),
			"-bufsize", fmt.Sprintf("%dk", kbps*2),
			"-preset", plan.Preset,
		)
		if plan.MaxHeight > 0 {
			args = append(args, "-vf", fmt.Sprintf("scale=-2:'min(ih,%d)'", plan.MaxHeight))
		}
	}
	if plan.AudioCodec == "none" {
		args = append(args, "-an")
	} else {
		args = append(args,
			"-map", "0:a:0?",
			"-c:a", plan.AudioCodec,
			"-b:a", fmt.Sprintf("%dk", plan.AudioKbps),
		)
	}
	if plan.Container == "mp4" || plan.AudioOnly {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, outputPath)
}

// readProgress consumes ffmpeg's -progress key=value output. out_time_ms is
// reported in microseconds despite its name.
func readProgress(r io.Reader, totalMicros int64, onProgress func(int)) {
	scanner := bufio.NewScanner(r)
	last := 0
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || (key != "out_time_us" && key != "out_time_ms") {
			continue
		}
		if totalMicros <= 0 || onProgress == nil {
			continue
		}
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		percent := int(float64(us) / float64(totalMicros) * 100)
		if percent > 99 {
			percent = 99
		}
		if percent > last {
			last = percent
			onProgress(percent)
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
