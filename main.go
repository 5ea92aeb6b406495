package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/asticode/go-astiav"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoldenFealla/AVOutputGo/internal/capture"
	"github.com/GoldenFealla/AVOutputGo/internal/config"
	"github.com/GoldenFealla/AVOutputGo/internal/hwdevice"
	"github.com/GoldenFealla/AVOutputGo/internal/logger"
	"github.com/GoldenFealla/AVOutputGo/internal/media"
	"github.com/GoldenFealla/AVOutputGo/internal/metrics"
	"github.com/GoldenFealla/AVOutputGo/internal/sink"
	_ "github.com/GoldenFealla/AVOutputGo/internal/sink/oto"
	_ "github.com/GoldenFealla/AVOutputGo/internal/sink/portaudio"
	"github.com/GoldenFealla/AVOutputGo/internal/widget"
)

var (
	WIDTH  float32 = 800
	HEIGHT float32 = 450
)

type flags struct {
	configPath string
	level      string
	sink       string
	hardware   string
	capture    string
	metrics    string
	noVideo    bool
}

func main() {
	var f flags

	cmd := &cobra.Command{
		Use:   "avplayer [input]",
		Short: "Play a media file through a pull audio sink",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f, args)
			if err != nil {
				return err
			}
			return run(cfg, f.noVideo)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&f.level, "level", "", "log level: debug/info/warn/error")
	cmd.Flags().StringVar(&f.sink, "sink", "", "audio sink: oto/portaudio/auto")
	cmd.Flags().StringVar(&f.hardware, "hw", "", "hardware decoder type, e.g. vaapi or mediacodec")
	cmd.Flags().StringVar(&f.capture, "capture", "", "write played audio to this zstd-compressed file")
	cmd.Flags().StringVar(&f.metrics, "metrics", "", "serve prometheus metrics on this address")
	cmd.Flags().BoolVar(&f.noVideo, "no-video", false, "play audio only, without a window")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, f flags, args []string) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	if len(args) > 0 {
		cfg.Input = args[0]
	}
	if cmd.Flags().Changed("level") {
		cfg.Logging.Level = f.level
	}
	if cmd.Flags().Changed("sink") {
		cfg.Audio.Sink = f.sink
	}
	if cmd.Flags().Changed("hw") {
		cfg.Video.HardwareDevice = f.hardware
	}
	if cmd.Flags().Changed("capture") {
		cfg.Capture.Path = f.capture
	}
	if cmd.Flags().Changed("metrics") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = f.metrics
	}

	if cfg.Input == "" {
		return nil, fmt.Errorf("no input given")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config, noVideo bool) error {
	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	astiav.SetLogLevel(astiav.LogLevelError)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := media.NewMedia(media.Options{
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		HardwareDevice: cfg.Video.HardwareDevice,
		FrameQueueSize: cfg.Video.FrameQueueSize,
		MaxQueued:      cfg.Audio.MaxQueued,
	}, log)
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("closing media failed", zap.Error(err))
		}
	}()

	if cfg.Capture.Path != "" {
		tee, err := capture.Create(cfg.Capture.Path, m.Audio(), log.Named("capture"))
		if err != nil {
			return err
		}
		defer func() {
			if err := tee.Close(); err != nil {
				log.Warn("closing capture failed", zap.Error(err))
				return
			}
			log.Info("audio captured", zap.String("path", cfg.Capture.Path), zap.Uint64("bytes", tee.Written()))
		}()
		m.SetAudioSubmitter(tee)
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		if err := metrics.RegisterAudio(reg, m.Audio()); err != nil {
			return err
		}
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, reg, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	var (
		a       fyne.App
		surface hwdevice.Surface
		frame   *widget.VideoFrame
	)
	if !noVideo {
		a = app.New()
		frame = widget.NewVideoFrame(log.Named("surface"))
		surface = frame
	}

	if err := m.Load(cfg.Input, surface); err != nil {
		return err
	}

	out, err := sink.Open(cfg.Audio.Sink, sink.Format{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		BufferSize: cfg.Audio.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("opening audio sink failed: %w", err)
	}
	// The device must be stopped before the sink closes so its reader is released.
	defer func() {
		m.Audio().Stop()
		if err := out.Close(); err != nil {
			log.Warn("closing audio sink failed", zap.Error(err))
		}
	}()

	if err := out.Play(m.Audio()); err != nil {
		return fmt.Errorf("starting audio sink failed: %w", err)
	}

	if a == nil {
		return m.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Run(ctx)
		fyne.Do(a.Quit)
	}()
	go frame.Run(ctx, m.Frames(), m.VideoTimebase())

	w := a.NewWindow("Video player")
	w.SetContent(frame.Image)
	w.Resize(fyne.NewSize(WIDTH, HEIGHT))
	w.SetOnClosed(cancel)
	w.ShowAndRun()

	cancel()
	return <-errCh
}
