package logger

// Logger is the part of *zap.SugaredLogger that connection handling needs.
type Logger interface {
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Warnf(template string, args ...interface{})
}
