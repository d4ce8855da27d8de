package core

// Logger is implemented by the application loggers.
// args may contain errors, maps of extras and the current user, in any order.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogPerson identifies the user a log entry relates to.
type LogPerson struct {
	ID       string
	Username string
	Email    string
}
