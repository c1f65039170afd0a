// Package cmd implements the ps3disc command-line interface: cobra
// commands thin enough to do nothing but build a Request, call the
// matching pkg/app handler, and print the Response.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/ps3disc/internal/config"
	"github.com/deploymenttheory/ps3disc/internal/drives"
	"github.com/deploymenttheory/ps3disc/internal/interfaces"
	"github.com/deploymenttheory/ps3disc/internal/rawdevice"
	"github.com/deploymenttheory/ps3disc/pkg/app"
	"github.com/deploymenttheory/ps3disc/pkg/engine"
)

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "ps3disc",
	Short: "Dump and verify PlayStation 3 Blu-ray discs",
	Long: `ps3disc identifies a PS3 Blu-ray disc, finds its AES decryption
key from a local key cache, and copies every file from the disc while
transparently decrypting the protected regions, verifying the result
against redump/IRD reference hashes as it goes.

Commands:
  detect    Identify the inserted or mounted disc
  findkey   Locate the disc's decryption key in the key cache
  dump      Copy and decrypt the disc to a directory`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all but error output")
}

// newAppContext builds the pkg/app.Context every command's handler
// needs, wiring its progress callback to a single-line terminal
// updater unless --quiet was given. The log level comes from
// cfg.LogLevel unless --verbose or --quiet overrides it.
func newAppContext(cfg *config.Config) *app.Context {
	level := parseLogLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := app.NewContext(logger)
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	if !quiet {
		ctx.SetProgress(func(message string, percent int) {
			fmt.Fprintf(os.Stderr, "\r[%3d%%] %-60s", percent, message)
		})
	}
	return ctx
}

// newEngine wires pkg/engine.Engine to this platform's mount and drive
// enumerators and raw-device opener, following the same construction
// the teacher's service factories did, minus the singleton: every
// command builds its own Engine. cfg's RetryAttempts and ChunkSizeBytes
// flow through to the dump controller it constructs.
func newEngine(logger *slog.Logger, cfg *config.Config) *engine.Engine {
	eng := engine.New(drives.NewMountEnumerator(logger), drives.New(logger), openRawDevice, logger)
	eng.Config = cfg
	return eng
}

func openRawDevice(path string) (interfaces.RawDevice, error) {
	return rawdevice.Open(path)
}

// parseLogLevel maps config.Config.LogLevel's string onto a slog.Level,
// falling back to info on an unrecognized value.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig loads internal/config defaults/file/env, exiting the
// process on a malformed config file rather than returning a half-usable
// Config to every command.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
