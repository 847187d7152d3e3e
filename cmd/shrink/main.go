package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mediashrink/internal/auth"
	"mediashrink/internal/domain"
	"mediashrink/internal/infra"
	"mediashrink/internal/jobclient"
	"mediashrink/internal/lifecycle"
)

const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()
	cfg := infra.LoadClientConfig()

	var (
		req        domain.EncodeRequest
		followFlag string
		outFlag    string
	)
	flag.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "job service origin (empty uses SAME_ORIGIN)")
	flag.StringVar(&cfg.AuthUser, "user", cfg.AuthUser, "basic auth user")
	flag.StringVar(&cfg.AuthPass, "pass", cfg.AuthPass, "basic auth password")
	flag.Float64Var(&req.TargetSizeMB, "target", 0, "target output size in MB")
	flag.IntVar(&req.AudioBitrateKbps, "audio", domain.DefaultAudioBitrateKbps, "audio bitrate in kbps")
	flag.StringVar(&req.VideoCodec, "codec", "", "video codec (default libx264)")
	flag.StringVar(&req.AudioCodec, "audio-codec", "", "audio codec: aac, libopus or none")
	flag.StringVar(&req.Container, "container", "", "output container: mp4 or mkv")
	flag.StringVar(&req.Preset, "preset", "", "encoder preset")
	flag.IntVar(&req.MaxHeight, "max-height", 0, "cap output height in pixels")
	flag.BoolVar(&req.AutoResolution, "auto-res", false, "pick the output height from the bitrate budget")
	flag.IntVar(&req.MinAutoHeight, "min-height", 240, "lowest height auto resolution may choose")
	flag.BoolVar(&req.AudioOnly, "audio-only", false, "drop the video stream")
	flag.StringVar(&followFlag, "follow", "", "watch an existing job id instead of uploading")
	flag.StringVar(&outFlag, "out", "", "download the result to this path when the job completes")
	flag.Parse()

	logger := infra.NewLoggerTo(os.Stderr, cfg.AppEnv)
	printer := message.NewPrinter(language.English)

	if followFlag == "" && (flag.NArg() != 1 || req.TargetSizeMB <= 0) {
		fmt.Fprintln(os.Stderr, "usage: shrink -target MB [flags] <file>")
		fmt.Fprintln(os.Stderr, "       shrink -follow JOB_ID [flags]")
		flag.PrintDefaults()
		return exitUsage
	}

	client, err := jobclient.NewClient(jobclient.Options{
		BaseURL:    cfg.BackendURL,
		SameOrigin: cfg.SameOrigin,
		Logger:     &logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("invalid backend configuration")
		return exitUsage
	}
	creds := auth.FromPair(cfg.AuthUser, cfg.AuthPass)

	ctx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	view := &progressView{out: os.Stderr, printer: printer}
	coord := lifecycle.New(lifecycle.ClientBackend{Client: client, Credentials: creds}, lifecycle.Options{
		OnUpdate: view.render,
		Logger:   &logger,
	})

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go handleSignals(signals, coord.Cancel, cancelRun, os.Stderr)

	var snap lifecycle.Snapshot
	if followFlag != "" {
		snap, err = coord.Follow(ctx, followFlag)
	} else {
		path := flag.Arg(0)
		file, f, openErr := jobclient.OpenUploadFile(path)
		if openErr != nil {
			logger.Error().Err(openErr).Str("path", path).Msg("cannot open input")
			return exitUsage
		}
		defer f.Close()
		printer.Fprintf(os.Stderr, "uploading %s (%d bytes)\n", file.Name, file.Size)
		snap, err = coord.Run(ctx, lifecycle.Input{File: file, Request: req})
	}
	fmt.Fprintln(os.Stderr)

	switch snap.State {
	case lifecycle.StateCompleted:
		printer.Fprintf(os.Stdout, "job %s completed: %s\n", snap.JobID, snap.DownloadURL)
		if outFlag != "" {
			if err := download(ctx, client, creds, snap.JobID, outFlag, printer); err != nil {
				logger.Error().Err(err).Str("job_id", snap.JobID).Msg("download failed")
				return exitFailed
			}
		}
		return exitOK
	case lifecycle.StateCancelled:
		printer.Fprintf(os.Stdout, "job %s cancelled\n", snap.JobID)
		return exitCancelled
	default:
		ev := logger.Error().Err(err).Str("job_id", snap.JobID).Bool("local", snap.LocalFailure)
		var stream *jobclient.StreamClosedError
		if errors.As(err, &stream) {
			ev = ev.Str("hint", "connection lost; rerun with -follow "+snap.JobID)
		}
		ev.Msg("job failed")
		return exitFailed
	}
}

// handleSignals asks the job to cancel on the first signal. A second signal,
// or a cancel request that cannot be made, aborts the run locally.
func handleSignals(signals <-chan os.Signal, cancelJob func() error, abort func(), notice io.Writer) {
	cancelled := false
	for range signals {
		if !cancelled {
			cancelled = true
			if err := cancelJob(); err == nil {
				fmt.Fprintln(notice, "\ncancelling, press Ctrl-C again to abort")
				continue
			}
		}
		abort()
		return
	}
}

func download(ctx context.Context, client *jobclient.Client, creds auth.Credentials, jobID, path string, printer *message.Printer) error {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	n, err := client.Download(ctx, jobID, creds, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	printer.Fprintf(os.Stdout, "saved %s (%d bytes)\n", path, n)
	return nil
}

type progressView struct {
	out     io.Writer
	printer *message.Printer
	last    string
}

// render redraws a single status line; OnUpdate runs on the coordinator
// goroutine so no locking is needed.
func (v *progressView) render(s lifecycle.Snapshot) {
	line := statusLine(v.printer, s)
	if line == v.last {
		return
	}
	v.last = line
	v.printer.Fprintf(v.out, "\r%-60s", line)
}

func statusLine(p *message.Printer, s lifecycle.Snapshot) string {
	switch s.State {
	case lifecycle.StateUploading:
		return p.Sprintf("upload %d%%", s.UploadPercent)
	case lifecycle.StateSubmitted:
		return p.Sprintf("job %s submitted", s.JobID)
	case lifecycle.StateStreaming:
		phase := s.Phase
		if phase == "" {
			phase = "working"
		}
		return p.Sprintf("%s %d%%", phase, s.ProgressPercent)
	default:
		return string(s.State)
	}
}
