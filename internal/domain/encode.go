package domain

import (
	"fmt"
	"strings"
)

// DefaultAudioBitrateKbps is used when a request omits the audio bitrate.
const DefaultAudioBitrateKbps = 128

// EncodeRequest asks the service to compress a previously uploaded source
// towards a target output size. It is treated as immutable once submitted.
type EncodeRequest struct {
	SourceRef        string  `json:"source_ref"`
	TargetSizeMB     float64 `json:"target_size_mb"`
	AudioBitrateKbps int     `json:"audio_bitrate_kbps"`
	VideoCodec       string  `json:"video_codec,omitempty"`
	AudioCodec       string  `json:"audio_codec,omitempty"`
	Container        string  `json:"container,omitempty"`
	Preset           string  `json:"preset,omitempty"`
	MaxHeight        int     `json:"max_height,omitempty"`
	AutoResolution   bool    `json:"auto_resolution,omitempty"`
	MinAutoHeight    int     `json:"min_auto_resolution,omitempty"`
	AudioOnly        bool    `json:"audio_only,omitempty"`
}

var (
	allowedContainers  = map[string]bool{"mp4": true, "mkv": true}
	allowedAudioCodecs = map[string]bool{"libopus": true, "aac": true, "none": true}
)

// Normalize applies defaults and validates the request. The receiver is not
// modified; the normalized copy is returned.
func (r EncodeRequest) Normalize() (EncodeRequest, error) {
	out := r
	out.SourceRef = strings.TrimSpace(out.SourceRef)
	if out.SourceRef == "" {
		return EncodeRequest{}, fmt.Errorf("%w: source_ref is required", ErrInvalidRequest)
	}
	if out.TargetSizeMB <= 0 {
		return EncodeRequest{}, fmt.Errorf("%w: target_size_mb must be positive", ErrInvalidRequest)
	}
	if out.AudioBitrateKbps == 0 {
		out.AudioBitrateKbps = DefaultAudioBitrateKbps
	}
	if out.AudioBitrateKbps < 0 {
		return EncodeRequest{}, fmt.Errorf("%w: audio_bitrate_kbps must be positive", ErrInvalidRequest)
	}
	out.Container = strings.ToLower(strings.TrimSpace(out.Container))
	if out.Container == "" {
		out.Container = "mp4"
	}
	if !allowedContainers[out.Container] {
		return EncodeRequest{}, fmt.Errorf("%w: unsupported container %q", ErrInvalidRequest, out.Container)
	}
	out.AudioCodec = strings.TrimSpace(out.AudioCodec)
	if out.AudioCodec == "" {
		out.AudioCodec = "aac"
	}
	if !allowedAudioCodecs[out.AudioCodec] {
		return EncodeRequest{}, fmt.Errorf("%w: unsupported audio codec %q", ErrInvalidRequest, out.AudioCodec)
	}
	out.VideoCodec = strings.TrimSpace(out.VideoCodec)
	if out.VideoCodec == "" {
		out.VideoCodec = "libx264"
	}
	out.Preset = strings.TrimSpace(out.Preset)
	if out.Preset == "" {
		out.Preset = "medium"
	}
	if out.MaxHeight < 0 {
		out.MaxHeight = 0
	}
	if out.MinAutoHeight <= 0 {
		out.MinAutoHeight = 240
	}
	return out, nil
}

// UploadResult is returned by the upload endpoint. SourceRef is the opaque
// handle used to request job creation without re-sending the file.
type UploadResult struct {
	SourceRef                string   `json:"source_ref"`
	Filename                 string   `json:"filename"`
	DurationSeconds          float64  `json:"duration_s"`
	OriginalVideoBitrateKbps *float64 `json:"original_video_bitrate_kbps,omitempty"`
	OriginalAudioBitrateKbps *float64 `json:"original_audio_bitrate_kbps,omitempty"`
	OriginalWidth            *int     `json:"original_width,omitempty"`
	OriginalHeight           *int     `json:"original_height,omitempty"`
	EstimateTotalKbps        float64  `json:"estimate_total_kbps"`
	EstimateVideoKbps        float64  `json:"estimate_video_kbps"`
	WarnLowQuality           bool     `json:"warn_low_quality"`
}
