package main

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/dv8lights/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "dv8lights",
		Short:         "Robot body light and face panel controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml")

	root.AddCommand(runCmd(), simCmd(), selftestCmd(), publishCmd(), facesCmd(), configCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("dv8lights")
	}
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist, and sets up logging from it.
func loadConfig() (*config.Config, error) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg, err := config.Load(configPath)
	missing := errors.Is(err, fs.ErrNotExist)
	if err != nil && !missing {
		return nil, err
	}
	setupLogging(cfg.Log)
	if missing {
		log.Warn().Str("path", configPath).Msg("config not found; using defaults")
	}
	return cfg, nil
}

func setupLogging(c config.Log) {
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var writers []io.Writer
	if c.Console || c.File == "" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	if c.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
		})
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}
