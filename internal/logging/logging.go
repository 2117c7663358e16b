// Package logging builds the zap loggers handed to every service and command.
package logging

import (
	"os"

	"github.com/segyhp/premium-engine/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger from the logging section of the configuration.
// Output is stdout, stderr or a file path opened for appending.
func New(cfg config.LoggingConfig, development bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var writeSyncer zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		writeSyncer = zapcore.AddSync(os.Stdout)
	case "stderr":
		writeSyncer = zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		writeSyncer = zapcore.AddSync(file)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	if development {
		return zap.New(core, zap.Development(), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
	}
	return zap.New(core, zap.AddCaller()), nil
}

// Fields shared across packages so log queries can join on them.

func QuoteID(id uuid.UUID) zap.Field {
	return zap.String("quote_id", id.String())
}

func ProductID(id uuid.UUID) zap.Field {
	return zap.String("product_id", id.String())
}

func InstallmentID(id uuid.UUID) zap.Field {
	return zap.String("installment_id", id.String())
}

func Fingerprint(fp string) zap.Field {
	return zap.String("fingerprint", fp)
}

func TariffVersion(version string) zap.Field {
	return zap.String("tariff_version", version)
}
