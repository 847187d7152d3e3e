package encoder

import (
	"fmt"
	"math"

	"mediashrink/internal/domain"
)

const (
	// containerOverheadFactor reserves room for muxing overhead.
	containerOverheadFactor = 0.98
	// MinKbpsPerMegapixel is the quality floor auto resolution keeps.
	MinKbpsPerMegapixel = 700
	// lowQualityVideoKbps flags targets that will look poor at any size.
	lowQualityVideoKbps = 250
)

var heightLadder = []int{2160, 1440, 1080, 720, 480, 360, 240}

// Probe describes a source file.
type Probe struct {
	DurationSeconds float64
	Width           int
	Height          int
	VideoKbps       float64
	AudioKbps       float64
}

// Plan is the resolved encode configuration for one job.
type Plan struct {
	TotalKbps  float64
	VideoKbps  float64
	AudioKbps  int
	VideoCodec string
	AudioCodec string
	Preset     string
	Container  string
	// MaxHeight caps the output height; 0 keeps the source size.
	MaxHeight int
	AudioOnly bool
}

// EstimateBitrates returns the total and video bitrate budget that fits
// targetMB over duration seconds.
func EstimateBitrates(durationSeconds, targetMB float64, audioKbps int) (total, video float64) {
	if durationSeconds <= 0 || targetMB <= 0 {
		return 0, 0
	}
	total = targetMB * 8192 / durationSeconds * containerOverheadFactor
	video = math.Max(total-float64(audioKbps), 0)
	return total, video
}

// WarnLowQuality reports whether the video budget is below a useful floor.
func WarnLowQuality(videoKbps float64) bool {
	return videoKbps < lowQualityVideoKbps
}

// ChooseHeight picks the largest ladder height, never above the source,
// whose pixel count still gets MinKbpsPerMegapixel from targetVideoKbps.
// An explicit height wins. It returns 0 when the source size is unknown.
func ChooseHeight(width, height int, targetVideoKbps float64, minHeight, explicit int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	if explicit > 0 {
		return max(minHeight, explicit)
	}
	if targetVideoKbps <= 0 {
		return minHeight
	}
	chosen := 0
	for _, h := range heightLadder {
		if h > height {
			continue
		}
		mp := float64(width) * (float64(h) / float64(height)) * float64(h) / 1_000_000
		if mp <= 0 {
			continue
		}
		if targetVideoKbps/mp >= MinKbpsPerMegapixel {
			chosen = h
			break
		}
	}
	if chosen == 0 {
		chosen = minHeight
	}
	return max(chosen, minHeight)
}

// NewPlan resolves a normalized request against a probed source.
func NewPlan(probe Probe, req domain.EncodeRequest) (Plan, error) {
	if probe.DurationSeconds <= 0 {
		return Plan{}, fmt.Errorf("encoder: source duration unknown")
	}
	audioKbps := req.AudioBitrateKbps
	if req.AudioCodec == "none" {
		audioKbps = 0
	}
	total, video := EstimateBitrates(probe.DurationSeconds, req.TargetSizeMB, audioKbps)
	plan := Plan{
		TotalKbps:  total,
		VideoKbps:  video,
		AudioKbps:  audioKbps,
		VideoCodec: req.VideoCodec,
		AudioCodec: req.AudioCodec,
		Preset:     req.Preset,
		Container:  req.Container,
		AudioOnly:  req.AudioOnly,
	}
	if req.AudioOnly {
		if req.AudioCodec == "none" {
			return Plan{}, fmt.Errorf("%w: audio-only output needs an audio codec", domain.ErrInvalidRequest)
		}
		plan.VideoKbps = 0
		return plan, nil
	}
	if video <= 0 {
		return Plan{}, fmt.Errorf("%w: target size too small for the audio bitrate", domain.ErrInvalidRequest)
	}
	switch {
	case req.AutoResolution:
		plan.MaxHeight = ChooseHeight(probe.Width, probe.Height, video, req.MinAutoHeight, req.MaxHeight)
	case req.MaxHeight > 0:
		plan.MaxHeight = req.MaxHeight
	}
	if plan.MaxHeight >= probe.Height && probe.Height > 0 {
		plan.MaxHeight = 0
	}
	return plan, nil
}
