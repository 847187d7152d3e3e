package domain

import (
	"errors"
	"testing"
)

func TestNormalizeAppliesDefaults(t *testing.T) {
	in := EncodeRequest{SourceRef: "  ref-1 ", TargetSizeMB: 25}
	got, err := in.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.SourceRef != "ref-1" || got.AudioBitrateKbps != DefaultAudioBitrateKbps {
		t.Fatalf("got %+v", got)
	}
	if got.Container != "mp4" || got.AudioCodec != "aac" || got.VideoCodec != "libx264" || got.Preset != "medium" {
		t.Fatalf("codec defaults = %+v", got)
	}
	if got.MinAutoHeight != 240 {
		t.Fatalf("min auto height = %d, want 240", got.MinAutoHeight)
	}
	if in.SourceRef != "  ref-1 " {
		t.Fatalf("receiver modified: %+v", in)
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		req  EncodeRequest
	}{
		{"missing source", EncodeRequest{TargetSizeMB: 5}},
		{"zero target", EncodeRequest{SourceRef: "r"}},
		{"negative target", EncodeRequest{SourceRef: "r", TargetSizeMB: -1}},
		{"negative audio", EncodeRequest{SourceRef: "r", TargetSizeMB: 5, AudioBitrateKbps: -64}},
		{"container", EncodeRequest{SourceRef: "r", TargetSizeMB: 5, Container: "avi"}},
		{"audio codec", EncodeRequest{SourceRef: "r", TargetSizeMB: 5, AudioCodec: "mp3"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.req.Normalize(); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestTerminalState(t *testing.T) {
	tests := []struct {
		ev   ProgressEvent
		want JobState
	}{
		{ProgressEvent{Percent: 40}, ""},
		{ProgressEvent{Terminal: true, State: JobStateCancelled}, JobStateCancelled},
		{ProgressEvent{Terminal: true, Phase: PhaseDone}, JobStateCompleted},
		{ProgressEvent{Terminal: true, Phase: PhaseEncoding, Message: "boom"}, JobStateFailed},
		{ProgressEvent{Terminal: true, State: JobStateRunning, Phase: PhaseDone}, JobStateCompleted},
	}
	for _, tc := range tests {
		if got := tc.ev.TerminalState(); got != tc.want {
			t.Fatalf("TerminalState(%+v) = %q, want %q", tc.ev, got, tc.want)
		}
	}
}

func TestTerminalEventFor(t *testing.T) {
	ev := TerminalEventFor(Job{ID: "j", State: JobStateCompleted, ProgressPercent: 99, Phase: PhaseFinalizing})
	if !ev.Terminal || ev.Percent != 100 || ev.Phase != PhaseDone || ev.TerminalState() != JobStateCompleted {
		t.Fatalf("completed event = %+v", ev)
	}
	ev = TerminalEventFor(Job{ID: "j", State: JobStateFailed, ProgressPercent: 30, Error: "encoder crashed"})
	if ev.Message != "encoder crashed" || ev.Percent != 30 || ev.TerminalState() != JobStateFailed {
		t.Fatalf("failed event = %+v", ev)
	}
}
