package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// exitFailures is the exit code of a batch that completed with failed items.
const exitFailures = 3

var (
	logLevel = envOr("PBOSIGN_LOG_LEVEL", "info")
	logJSON  bool

	log = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:           "pbosign",
	Short:         "Sign and verify PBO archives with BI keys",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		log = newLogger(level, logJSON)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", logLevel, "log level (debug, info, warn, error), also read from PBOSIGN_LOG_LEVEL")
	flags.BoolVar(&logJSON, "log-json", false, "write logs as JSON lines instead of console output")
	flags.AddFlagSet(&outputFlags)
}

func newLogger(level zerolog.Level, json bool) zerolog.Logger {
	out := zerolog.SyncWriter(os.Stderr)

	var logger zerolog.Logger
	if json {
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func envOr(name, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return 1
}

// Execute the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
