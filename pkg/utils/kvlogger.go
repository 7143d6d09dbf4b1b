package utils

import "go.uber.org/zap"

// KVLogger adapts a zap logger to the minimal key/value Logger interfaces
// used by the dispatcher and HTTP layers
type KVLogger struct {
	s *zap.SugaredLogger
}

// NewKVLogger wraps a zap logger
func NewKVLogger(logger *zap.Logger) *KVLogger {
	return &KVLogger{s: logger.Sugar()}
}

// Info logs at info level with key/value pairs
func (k *KVLogger) Info(msg string, keysAndValues ...interface{}) {
	k.s.Infow(msg, keysAndValues...)
}

// Error logs at error level with key/value pairs
func (k *KVLogger) Error(msg string, keysAndValues ...interface{}) {
	k.s.Errorw(msg, keysAndValues...)
}
