package contracts

// Logger is a leveled, structured logging sink. keysAndValues are alternating
// key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// With returns a child logger carrying the given fields on every entry.
	With(keysAndValues ...any) Logger
}
