// Package logging provides zap-backed implementations of types.Logger
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sidedoor/internal/types"
)

// NewZap builds a production zap logger wrapped as a types.Logger
func NewZap(level string, development bool) (types.Logger, error) {
	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(parsed)
	}

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &zapLogger{zap: logger}, nil
}

// NewNop returns a logger that discards everything
func NewNop() types.Logger {
	return &zapLogger{zap: zap.NewNop()}
}

// zapLogger wraps zap.Logger to implement types.Logger
type zapLogger struct {
	zap *zap.Logger
}

func (z *zapLogger) Debug(msg string, fields ...interface{}) {
	z.zap.Debug(msg, z.fieldsToZap(fields)...)
}

func (z *zapLogger) Info(msg string, fields ...interface{}) {
	z.zap.Info(msg, z.fieldsToZap(fields)...)
}

func (z *zapLogger) Warn(msg string, fields ...interface{}) {
	z.zap.Warn(msg, z.fieldsToZap(fields)...)
}

func (z *zapLogger) Error(msg string, fields ...interface{}) {
	z.zap.Error(msg, z.fieldsToZap(fields)...)
}

func (z *zapLogger) With(fields ...interface{}) types.Logger {
	return &zapLogger{zap: z.zap.With(z.fieldsToZap(fields)...)}
}

func (z *zapLogger) fieldsToZap(fields []interface{}) []zap.Field {
	var zapFields []zap.Field
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, ok := fields[i].(string)
			if ok {
				zapFields = append(zapFields, zap.Any(key, fields[i+1]))
			}
		}
	}
	return zapFields
}
