package encoder

import (
	"errors"
	"math"
	"strings"
	"testing"

	"mediashrink/internal/domain"
)

func TestChooseHeight(t *testing.T) {
	cases := []struct {
		name          string
		width, height int
		targetKbps    float64
		minHeight     int
		explicit      int
		want          int
	}{
		{"4k starved", 3840, 2160, 2500, 240, 0, 1080},
		{"1080p ample", 1920, 1080, 8000, 240, 0, 1080},
		{"min height respected", 640, 360, 200, 360, 0, 360},
		{"explicit overrides", 3840, 2160, 2000, 240, 720, 720},
		{"explicit below min", 1920, 1080, 2000, 360, 240, 360},
		{"unknown size", 0, 0, 2000, 240, 0, 0},
		{"no video budget", 1920, 1080, 0, 240, 0, 240},
		{"never upscales", 854, 480, 50000, 240, 0, 480},
		{"falls to min", 1920, 1080, 10, 240, 0, 240},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ChooseHeight(tc.width, tc.height, tc.targetKbps, tc.minHeight, tc.explicit); got != tc.want {
				t.Fatalf("ChooseHeight = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEstimateBitrates(t *testing.T) {
	total, video := EstimateBitrates(100, 25, 128)
	if math.Abs(total-2007.04) > 0.01 {
		t.Fatalf("total = %f, want 2007.04", total)
	}
	if math.Abs(video-1879.04) > 0.01 {
		t.Fatalf("video = %f, want 1879.04", video)
	}
	if total, video := EstimateBitrates(0, 25, 128); total != 0 || video != 0 {
		t.Fatalf("zero duration gave %f/%f", total, video)
	}
	if _, video := EstimateBitrates(3600, 1, 128); video != 0 {
		t.Fatalf("video budget should floor at 0, got %f", video)
	}
}

func normalized(t *testing.T, req domain.EncodeRequest) domain.EncodeRequest {
	t.Helper()
	req.SourceRef = "src"
	out, err := req.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return out
}

func TestNewPlan(t *testing.T) {
	probe := Probe{DurationSeconds: 100, Width: 3840, Height: 2160}

	plan, err := NewPlan(probe, normalized(t, domain.EncodeRequest{TargetSizeMB: 25, AutoResolution: true}))
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if plan.MaxHeight != 1080 {
		t.Fatalf("auto height = %d, want 1080", plan.MaxHeight)
	}
	if plan.AudioKbps != 128 || plan.VideoCodec != "libx264" || plan.Container != "mp4" {
		t.Fatalf("plan defaults = %+v", plan)
	}

	plan, err = NewPlan(probe, normalized(t, domain.EncodeRequest{TargetSizeMB: 25, AudioCodec: "none"}))
	if err != nil {
		t.Fatalf("NewPlan muted: %v", err)
	}
	if plan.AudioKbps != 0 || math.Abs(plan.VideoKbps-plan.TotalKbps) > 1e-9 {
		t.Fatalf("muted plan = %+v", plan)
	}

	plan, err = NewPlan(probe, normalized(t, domain.EncodeRequest{TargetSizeMB: 25, MaxHeight: 4320}))
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if plan.MaxHeight != 0 {
		t.Fatalf("height above source should keep original, got %d", plan.MaxHeight)
	}

	if _, err := NewPlan(Probe{DurationSeconds: 3600}, normalized(t, domain.EncodeRequest{TargetSizeMB: 1})); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("tiny target error = %v, want ErrInvalidRequest", err)
	}
	if _, err := NewPlan(Probe{}, normalized(t, domain.EncodeRequest{TargetSizeMB: 10})); err == nil {
		t.Fatalf("expected error without duration")
	}
}

func TestBuildArgs(t *testing.T) {
	args := strings.Join(buildArgs("in.mov", "out.mp4", Plan{
		VideoKbps: 1879.04, AudioKbps: 128, VideoCodec: "libx264", AudioCodec: "aac",
		Preset: "medium", Container: "mp4", MaxHeight: 720,
	}), " ")
	for _, want := range []string{"-b:v 1879k", "-b:a 128k", "-progress pipe:1", "scale=-2:'min(ih,720)'", "-movflags +faststart"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}

	audioOnly := strings.Join(buildArgs("in.mov", "out.m4a", Plan{AudioOnly: true, AudioCodec: "aac", AudioKbps: 96}), " ")
	if !strings.Contains(audioOnly, "-vn") || strings.Contains(audioOnly, "-c:v") {
		t.Fatalf("audio-only args = %q", audioOnly)
	}
}

func TestReadProgress(t *testing.T) {
	input := strings.Join([]string{
		"frame=1", "out_time_us=1000000", "progress=continue",
		"out_time_us=500000", "out_time_ms=5000000", "out_time_us=bogus",
		"out_time_us=20000000", "progress=end",
	}, "\n")
	var got []int
	readProgress(strings.NewReader(input), 10_000_000, func(p int) { got = append(got, p) })
	want := []int{10, 50, 99}
	if len(got) != len(want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("progress = %v, want %v", got, want)
		}
	}
}

func TestParseProbe(t *testing.T) {
	raw := []byte(`{
		"format": {"duration": "12.5", "bit_rate": "2128000"},
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080},
			{"codec_type": "audio", "bit_rate": "128000"}
		]
	}`)
	probe, err := parseProbe(raw)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if probe.DurationSeconds != 12.5 || probe.Width != 1920 || probe.Height != 1080 {
		t.Fatalf("probe = %+v", probe)
	}
	if probe.AudioKbps != 128 || probe.VideoKbps != 2000 {
		t.Fatalf("bitrates = %+v", probe)
	}
	if _, err := parseProbe([]byte(`{"format":{}}`)); err == nil {
		t.Fatalf("expected error for missing duration")
	}
}
