package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds the process logger. A development config with colored levels is
// used when QUICKSEND_ENV=development, a JSON production config otherwise.
func Init() (*zap.Logger, error) {
	var cfg zap.Config

	if os.Getenv("QUICKSEND_ENV") == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}
