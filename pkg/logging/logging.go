package logging

// Logger is the logging contract used across the engine. Component and
// per-unit loggers are derived by prefix composition, so log lines stay
// greppable by unit name.
type Logger interface {
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

type LogFunc func(format string, args ...interface{})

type LogFuncs struct {
	Debugf LogFunc
	Infof  LogFunc
	Warnf  LogFunc
	Errorf LogFunc
}

type prefixLogger struct {
	prefix string
	funcs  LogFuncs
}

// NewLogger creates a logger that prepends prefix to every message and
// forwards to the given functions. Nil functions silence that level.
func NewLogger(prefix string, funcs LogFuncs) Logger {
	return &prefixLogger{
		prefix: prefix,
		funcs:  funcs,
	}
}

// NewUnitLogger derives a per-unit logger from a parent logger.
func NewUnitLogger(unitName string, parent Logger) Logger {
	return NewLogger("unit: "+unitName+" , ", LogFuncs{
		Debugf: parent.Debugf,
		Infof:  parent.Infof,
		Warnf:  parent.Warnf,
		Errorf: parent.Errorf,
	})
}

func (l *prefixLogger) emit(fn LogFunc, msg string, args ...interface{}) {
	if fn == nil {
		return
	}
	if l.prefix != "" {
		msg = l.prefix + msg
	}
	fn(msg, args...)
}

func (l *prefixLogger) Debugf(msg string, args ...interface{}) {
	l.emit(l.funcs.Debugf, msg, args...)
}

func (l *prefixLogger) Infof(msg string, args ...interface{}) {
	l.emit(l.funcs.Infof, msg, args...)
}

func (l *prefixLogger) Warnf(msg string, args ...interface{}) {
	l.emit(l.funcs.Warnf, msg, args...)
}

func (l *prefixLogger) Errorf(msg string, args ...interface{}) {
	l.emit(l.funcs.Errorf, msg, args...)
}
