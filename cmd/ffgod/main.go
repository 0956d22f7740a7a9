// Command ffgod runs the transcode engine, either as a long-lived
// worker pool (serve) or as one-shot Smart Scan / media inspection
// invocations, exposed as a cobra-based command tree.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/five82/ffgo"
	"github.com/five82/ffgo/internal/obslog"
)

const appName = "ffgod"

var (
	flagDataDir string
	flagWorkers int
	flagVerbose bool
	flagNoLog   bool
	flagJSON    bool
)

func main() {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Media transcode orchestrator driving ffmpeg/ffprobe/avifenc",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", defaultDataDir(), "directory holding presets, settings, and queue sidecars")
	root.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "worker count override (0 = derive from CPU count)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")
	root.PersistentFlags().BoolVar(&flagNoLog, "no-log", false, "disable the log file")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit newline-delimited JSON events instead of colored terminal output")

	root.AddCommand(newServeCommand(), newScanCommand(), newInspectCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ffgo")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ffgo")
	}
	return filepath.Join(home, ".local", "state", "ffgo")
}

func newEngine(ctx context.Context) (*ffgo.Engine, zerolog.Logger, func() error, error) {
	logger, closeLog, err := obslog.Setup(obslog.DefaultLogDir(), flagVerbose, flagNoLog)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("set up logging: %w", err)
	}

	e, err := ffgo.New(ctx, ffgo.Config{
		DataDir:           flagDataDir,
		ConfiguredWorkers: flagWorkers,
		Logger:            logger,
	})
	if err != nil {
		closeLog()
		return nil, zerolog.Logger{}, nil, err
	}
	return e, logger, closeLog, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the worker pool and print queue and Smart Scan events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			e, logger, closeLog, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer closeLog()

			if flagJSON {
				e.AddListener(func(ev ffgo.Event) error {
					data, err := json.Marshal(ev)
					if err != nil {
						return err
					}
					fmt.Println(string(data))
					return nil
				})
			} else {
				e.AddReporter(ffgo.NewCompositeReporter(ffgo.NewTerminalReporter(), ffgo.NewLogReporter(logger)))
			}

			fmt.Fprintf(os.Stderr, "%s: listening with %d workers (data dir %s)\n", appName, e.WorkerCount(), flagDataDir)
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "shutting down")
			return nil
		},
	}
}

func newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>",
		Short: "Run a Smart Scan batch rooted at dir and print progress until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			e, _, closeLog, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer closeLog()

			done := make(chan struct{})
			e.AddListener(func(ev ffgo.Event) error {
				if sp, ok := ev.(ffgo.SmartScanProgressEvent); ok {
					fmt.Printf("scanned=%d candidates=%d processed=%d\n", sp.FilesScanned, sp.Candidates, sp.Processed)
					if sp.Processed >= sp.Candidates && sp.FilesScanned > 0 {
						select {
						case <-done:
						default:
							close(done)
						}
					}
				}
				return nil
			})

			batch, err := e.RunAutoCompress(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "batch %s started at %s\n", batch.ID, batch.RootDirectory)

			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	}
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print ffprobe-derived media info for a single file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, _, closeLog, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer closeLog()

			mi, err := e.InspectMedia(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(mi)
		},
	}
}
