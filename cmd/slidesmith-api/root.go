package main

import (
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/config"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	envFile string
)

var rootCmd = &cobra.Command{
	Use:          "slidesmith-api",
	Short:        "Generate prospect pitch decks from spreadsheets",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)

	rootCmd.PersistentFlags().StringVarP(&envFile, "config", "e", "", "Path to an env file with configuration overrides")
}

// setup loads the configuration and replaces the global zap logger.
// The returned func flushes and restores the previous logger.
func setup() (*config.Config, func(), error) {
	cfg, err := config.New(envFile)
	if err != nil {
		return nil, nil, err
	}

	logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
	if err != nil {
		logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger := log.InitLog(logLvl, cfg.Service.LogFormat)
	undo := zap.ReplaceGlobals(logger)

	return cfg, func() {
		_ = logger.Sync()
		undo()
	}, nil
}
