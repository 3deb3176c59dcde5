package studio

import "github.com/charmbracelet/log"

// Notifier surfaces operation outcomes to the user.
type Notifier interface {
	Success(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// LogNotifier writes notifications through a structured logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) logger() *log.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return log.Default()
}

func (n LogNotifier) Success(msg string, keyvals ...any) { n.logger().Info(msg, keyvals...) }
func (n LogNotifier) Warn(msg string, keyvals ...any)    { n.logger().Warn(msg, keyvals...) }
func (n LogNotifier) Error(msg string, keyvals ...any)   { n.logger().Error(msg, keyvals...) }

// NopNotifier drops everything.
type NopNotifier struct{}

func (NopNotifier) Success(string, ...any) {}
func (NopNotifier) Warn(string, ...any)    {}
func (NopNotifier) Error(string, ...any)   {}
