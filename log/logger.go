package log

import "context"

// Logger is the gateway's leveled, structured logging interface. Fields are
// free-form key/value maps; the context carries trace correlation the
// implementation may attach to each event.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	// Fatal logs and terminates the process.
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	// With returns a derived logger that stamps fields on every event.
	With(fields map[string]interface{}) Logger
}
