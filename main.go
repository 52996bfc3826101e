package main

import (
	"fmt"
	"os"
	"path/filepath"

	app "github.com/rocketscienceinc/connectfour-backend/internal"
	"github.com/rocketscienceinc/connectfour-backend/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// main - is the entry point of the application. It initializes the configuration, logger, and runs the application.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	conf := initConfig()
	logger := initLogger(conf)
	defer func() { _ = logger.Sync() }()

	if err := app.RunApp(logger, conf); err != nil {
		panic(fmt.Errorf("app run failed: %w", err))
	}
}

// initialize config.
func initConfig() *config.Config {
	baseDir, err := os.Getwd()
	if err != nil {
		panic(fmt.Errorf("failed to get current directory: %w", err))
	}

	path := filepath.Join(baseDir, "./config.yml")
	if _, err = os.Stat(path); err != nil {
		conf, loadErr := config.Load()
		if loadErr != nil {
			panic(loadErr)
		}

		return conf
	}

	return config.MustLoad(path)
}

// initialize logger.
func initLogger(conf *config.Config) *zap.Logger {
	level, err := zapcore.ParseLevel(conf.LogLevel)
	if err != nil {
		panic(fmt.Errorf("failed to parse log level %q: %w", conf.LogLevel, err))
	}

	var zapConf zap.Config
	switch conf.LogFormat {
	case "console":
		zapConf = zap.NewDevelopmentConfig()
	default:
		zapConf = zap.NewProductionConfig()
	}

	zapConf.Level = zap.NewAtomicLevelAt(level)
	zapConf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConf.Build()
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}

	return logger
}
