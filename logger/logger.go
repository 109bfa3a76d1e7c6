// Package logger defines the logging surface the pipeline writes to.
// Orchestrators log through the interface only; the zap implementation
// is wired in at construction and the noop default keeps library use
// silent unless the caller opts in.
package logger

// Logger is a leveled, structured logger. Fields carry the structured
// context for the entry; implementations decide the encoding.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// NoopLogger discards everything. It is the default for embedded use.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}
