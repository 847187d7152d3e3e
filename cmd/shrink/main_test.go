package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mediashrink/internal/lifecycle"
)

func TestStatusLine(t *testing.T) {
	p := message.NewPrinter(language.English)
	tests := []struct {
		snap lifecycle.Snapshot
		want string
	}{
		{lifecycle.Snapshot{State: lifecycle.StateUploading, UploadPercent: 42}, "upload 42%"},
		{lifecycle.Snapshot{State: lifecycle.StateSubmitted, JobID: "j1"}, "job j1 submitted"},
		{lifecycle.Snapshot{State: lifecycle.StateStreaming, Phase: "encoding", ProgressPercent: 7}, "encoding 7%"},
		{lifecycle.Snapshot{State: lifecycle.StateStreaming}, "working 0%"},
		{lifecycle.Snapshot{State: lifecycle.StateCancelled}, "cancelled"},
	}
	for _, tc := range tests {
		if got := statusLine(p, tc.snap); got != tc.want {
			t.Fatalf("statusLine(%+v) = %q, want %q", tc.snap, got, tc.want)
		}
	}
}

func TestProgressViewSkipsRepeats(t *testing.T) {
	var buf bytes.Buffer
	v := &progressView{out: &buf, printer: message.NewPrinter(language.English)}
	snap := lifecycle.Snapshot{State: lifecycle.StateUploading, UploadPercent: 10}
	v.render(snap)
	v.render(snap)
	snap.UploadPercent = 20
	v.render(snap)
	if n := strings.Count(buf.String(), "\r"); n != 2 {
		t.Fatalf("redraws = %d, want 2 (%q)", n, buf.String())
	}
}

func TestPrinterGroupsBytes(t *testing.T) {
	got := message.NewPrinter(language.English).Sprintf("%d bytes", 12345678)
	if got != "12,345,678 bytes" {
		t.Fatalf("got %q", got)
	}
}

func runSignals(t *testing.T, sent int, cancelErr error) (cancels, aborts int) {
	t.Helper()
	signals := make(chan os.Signal, sent)
	for i := 0; i < sent; i++ {
		signals <- os.Interrupt
	}
	close(signals)
	handleSignals(signals, func() error {
		cancels++
		return cancelErr
	}, func() { aborts++ }, io.Discard)
	return cancels, aborts
}

func TestHandleSignals(t *testing.T) {
	tests := []struct {
		name        string
		sent        int
		cancelErr   error
		wantCancels int
		wantAborts  int
	}{
		{name: "first signal cancels the job", sent: 1, wantCancels: 1},
		{name: "second signal aborts", sent: 2, wantCancels: 1, wantAborts: 1},
		{name: "later signals stop after abort", sent: 4, wantCancels: 1, wantAborts: 1},
		{name: "cancel refused aborts at once", sent: 1, cancelErr: lifecycle.ErrFinished, wantCancels: 1, wantAborts: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cancels, aborts := runSignals(t, tc.sent, tc.cancelErr)
			if cancels != tc.wantCancels || aborts != tc.wantAborts {
				t.Fatalf("cancels = %d, aborts = %d, want %d and %d", cancels, aborts, tc.wantCancels, tc.wantAborts)
			}
		})
	}
}
