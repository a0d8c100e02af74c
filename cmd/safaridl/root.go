package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFile = "info.log"

var (
	cookiesPath string
	preserveLog bool
	libraryPath string
)

var rootCmd = &cobra.Command{
	Use:   "safaridl",
	Short: "Download and build EPUBs of your books from Safari Books Online",
	Long: "Harvest a book from Safari Books Online chapter by chapter and " +
		"reassemble it into a portable EPUB archive. Downloads are resumable: " +
		"already materialized chapters and assets are never fetched twice.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cookiesPath, "cookies", "cookies.json", "Path of the session cookies file")
	rootCmd.PersistentFlags().BoolVar(&preserveLog, "preserve-log", false, "Leave the `info.log` file even if there isn't any error")
	rootCmd.PersistentFlags().StringVar(&libraryPath, "library", "library.db", "Path of the local library database")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(loginCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the run logger: warnings and errors to stderr, everything
// to info.log so a failed run leaves a full diagnostic trail behind.
func newLogger() (*zap.Logger, func(), error) {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.TimeKey = zapcore.OmitKey
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(ec),
		zapcore.Lock(os.Stderr),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= zapcore.WarnLevel }),
	)

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	fileCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(f),
		zap.NewAtomicLevelAt(zap.DebugLevel),
	)

	logger := zap.New(zapcore.NewTee(consoleCore, fileCore))
	cleanup := func() {
		logger.Sync()
		f.Close()
	}
	return logger, cleanup, nil
}

// removeLogOnSuccess drops the diagnostic log after a clean run.
func removeLogOnSuccess() {
	if !preserveLog {
		os.Remove(logFile)
	}
}
