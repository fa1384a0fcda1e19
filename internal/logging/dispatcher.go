package logging

import "github.com/rs/zerolog"

// DispatcherLogger bridges the dispatcher's key-value logging calls
// onto the sampled zerolog audit channel, so handler panics and queue
// pressure show up next to the rest of the audit trail.
type DispatcherLogger struct {
	audit zerolog.Logger
}

// NewDispatcherLogger wraps the audit logger for use by the engine's
// dispatch loop.
func NewDispatcherLogger(audit zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{audit: audit}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.emit(l.audit.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.emit(l.audit.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.emit(l.audit.Error(), msg, keysAndValues)
}

// emit attaches the variadic pairs to the event. Keys that are not
// strings are skipped rather than guessed at, and a trailing odd
// value is ignored.
func (l *DispatcherLogger) emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
