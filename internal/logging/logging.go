package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Params struct {
	// Level is a zap level name ("debug", "info", ...). Empty keeps the
	// environment default.
	Level string

	// File, if set, receives a JSON copy of every entry, rotated by size.
	File       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int

	// AppEnv mirrors $APP_ENV. Anything but "production" gets the development
	// encoder and debug level.
	AppEnv string
}

func baseConfig(appEnv string) zap.Config {
	if appEnv != "production" {
		return zap.NewDevelopmentConfig()
	}
	return zap.NewProductionConfig()
}

// Build returns the process logger and a cleanup func that syncs it.
func Build(params Params) (*zap.Logger, func(), error) {
	if params.AppEnv == "" {
		params.AppEnv = os.Getenv("APP_ENV")
	}

	cfg := baseConfig(params.AppEnv)
	if params.Level != "" {
		level, err := zap.ParseAtomicLevel(params.Level)
		if err != nil {
			return nil, nil, err
		}
		cfg.Level = level
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	var rotator *lumberjack.Logger
	if params.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   params.File,
			MaxSize:    orDefault(params.MaxSizeMB, 50),
			MaxAge:     orDefault(params.MaxAgeDays, 7),
			MaxBackups: orDefault(params.MaxBackups, 3),
		}

		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), cfg.Level)

		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	cleanup := func() {
		logger.Sync()
		if rotator != nil {
			rotator.Close()
		}
	}
	return logger, cleanup, nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
