// Command aigrabber-core is the native-messaging host the browser
// extension launches: it speaks length-prefixed JSON frames over
// stdio, detects adaptive-streaming manifests forwarded to it, and
// drives the bounded-concurrency download scheduler.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/siliconyouth/aigrabber-core/internal/config"
	"github.com/siliconyouth/aigrabber-core/internal/encoder"
	"github.com/siliconyouth/aigrabber-core/internal/fetcher"
	"github.com/siliconyouth/aigrabber-core/internal/helper"
	"github.com/siliconyouth/aigrabber-core/internal/model"
	"github.com/siliconyouth/aigrabber-core/internal/scheduler"
	"github.com/siliconyouth/aigrabber-core/internal/store"
	"github.com/siliconyouth/aigrabber-core/internal/transport"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var (
	cfg               *config.Config
	logger            *slog.Logger
	v                 = viper.New()
	cfgFile           string
	flagDownloadPath  string
	flagMaxConcurrent int
	flagLogLevel      string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aigrabber-core",
		Short:         "Native-messaging companion host for browser-assisted adaptive-streaming downloads",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if err := store.Close(); err != nil && logger != nil {
				logger.Error("failed to close database", "error", err)
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: config.yaml in ~/.config/aigrabber-core or the current directory)")
	root.PersistentFlags().StringVar(&flagDownloadPath, "download-path", "", "directory downloads are written to")
	root.PersistentFlags().IntVar(&flagMaxConcurrent, "max-concurrent", 0, "maximum concurrent downloads")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newServeCmd())
	return root
}

func initApp() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home + "/.config/aigrabber-core")
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded

	if flagDownloadPath != "" {
		cfg.Scheduler.DownloadPath = flagDownloadPath
	}
	if flagMaxConcurrent > 0 {
		cfg.Scheduler.MaxConcurrent = flagMaxConcurrent
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}

	logger, err = config.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := store.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize job history store: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed, reloading", "file", e.Name)
		if reloaded, err := config.Load(v); err == nil {
			cfg.Scheduler = reloaded.Scheduler
			cfg.Encoder = reloaded.Encoder
			cfg.Helper = reloaded.Helper
		} else {
			logger.Warn("failed to reload config", "error", err)
		}
	})
	v.WatchConfig()

	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the native-messaging host over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}

// serve wires the scheduler's sinks to outgoing native-messaging
// frames and job-history persistence, then blocks on the decode loop
// until stdin closes or the process receives a termination signal.
func serve(parentCtx context.Context, stdin io.Reader, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	encInfo, err := encoder.Detect(ctx, cfg.Encoder.BinaryPath)
	encoderBinary := ""
	if err != nil {
		logger.Warn("no encoder binary found, falling back to raw concatenation for merges", "error", err)
	} else {
		encoderBinary = encInfo.Binary
		logger.Info("encoder detected", "binary", encInfo.Binary, "version", encInfo.Version)
	}

	helperBinary := cfg.Helper.BinaryPath
	if helperBinary == "" {
		if bin, ok := helper.Detect(ctx, ""); ok {
			helperBinary = bin
		}
	}
	if helperBinary != "" {
		logger.Info("external helper detected", "binary", helperBinary)
	}

	f := fetcher.New(fetcher.Config{Logger: logger})
	codec := transport.New(stdin, stdout, logger)

	var sched *scheduler.Scheduler
	sched = scheduler.New(ctx, scheduler.Config{
		DownloadPath:   cfg.Scheduler.DownloadPath,
		MaxConcurrent:  cfg.Scheduler.MaxConcurrent,
		MinFreeSpaceGB: cfg.Scheduler.MinFreeSpaceGB,
		EncoderBinary:  encoderBinary,
		HelperBinary:   helperBinary,
	}, scheduler.Sinks{
		OnProgress: func(jobID string, progress model.DownloadProgress, status model.JobStatus) {
			send(codec, &model.Message{
				Type:      model.MsgDownloadProgress,
				Timestamp: nowUnixMilli(),
				JobID:     jobID,
				Progress:  &progress,
				Status:    status,
			})
			persist(sched, jobID)
		},
		OnComplete: func(jobID, outputPath string) {
			send(codec, &model.Message{
				Type:       model.MsgDownloadComplete,
				Timestamp:  nowUnixMilli(),
				JobID:      jobID,
				OutputPath: outputPath,
			})
			persist(sched, jobID)
		},
		OnError: func(jobID string, jobErr error) {
			send(codec, &model.Message{
				Type:      model.MsgDownloadError,
				Timestamp: nowUnixMilli(),
				JobID:     jobID,
				Error:     jobErr.Error(),
			})
			persist(sched, jobID)
		},
	}, f, logger)

	if rows, err := store.ListRecent(200); err != nil {
		logger.Warn("failed to load job history", "error", err)
	} else if len(rows) > 0 {
		jobs := make([]model.DownloadJob, len(rows))
		for i, row := range rows {
			jobs[i] = store.ToDownloadJob(row)
		}
		sched.Seed(jobs)
		logger.Info("rehydrated job history", "count", len(jobs))
	}

	handler := func(msg *model.Message) {
		dispatch(ctx, codec, sched, msg, encoderBinary != "")
	}
	onMalformed := func(err error) {
		logger.Warn("discarding malformed frame", "error", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- codec.Run(handler, onMalformed) }()

	select {
	case <-ctx.Done():
		sched.Wait()
		return nil
	case err := <-errCh:
		sched.Wait()
		return err
	}
}

func dispatch(ctx context.Context, codec *transport.Codec, sched *scheduler.Scheduler, msg *model.Message, encoderAvailable bool) {
	switch msg.Type {
	case model.MsgPing:
		send(codec, &model.Message{Type: model.MsgPong, Timestamp: nowUnixMilli(), Version: version})

	case model.MsgDownloadRequest:
		if msg.Stream == nil {
			send(codec, &model.Message{Type: model.MsgDownloadError, Timestamp: nowUnixMilli(), Error: "download request missing stream"})
			return
		}
		quality := model.VideoQuality{}
		if msg.Quality != nil {
			quality = *msg.Quality
		}
		jobID := sched.StartDownload(*msg.Stream, quality, msg.Audio, msg.OutputDir)
		send(codec, &model.Message{Type: model.MsgDownloadProgress, Timestamp: nowUnixMilli(), JobID: jobID, Status: model.JobPending})

	case model.MsgDownloadCancel:
		if err := sched.CancelDownload(msg.JobID); err != nil {
			send(codec, &model.Message{Type: model.MsgDownloadError, Timestamp: nowUnixMilli(), JobID: msg.JobID, Error: err.Error()})
		}

	case model.MsgGetDownloads:
		send(codec, &model.Message{Type: model.MsgDownloadsList, Timestamp: nowUnixMilli(), Downloads: sched.GetDownloads()})

	case model.MsgStreamDetected:
		// Acknowledgement only: detection itself happens in the browser
		// extension, which forwards the result for visibility/logging.
		logger.Debug("stream detected", "url", streamURL(msg))

	default:
		logger.Warn("unhandled message type", "type", msg.Type)
	}
}

func streamURL(msg *model.Message) string {
	if msg.Stream == nil {
		return ""
	}
	return msg.Stream.URL
}

func send(codec *transport.Codec, msg *model.Message) {
	if err := codec.Send(msg); err != nil {
		logger.Error("failed to send native-messaging frame", "type", msg.Type, "error", err)
	}
}

func persist(sched *scheduler.Scheduler, jobID string) {
	for _, j := range sched.GetDownloads() {
		if j.ID == jobID {
			if err := store.Upsert(j); err != nil {
				logger.Warn("failed to persist job history", "jobId", jobID, "error", err)
			}
			return
		}
	}
}

// nowUnixMilli is isolated so the rest of the package never calls
// time.Now directly for wire timestamps, keeping the outbound envelope
// construction in one place.
func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

func init() {
	cobra.EnableCommandSorting = false
}
