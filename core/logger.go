package core

// Logger logs messages and reports them to an error tracker.
// args may contain errors, maps of extra data and at most one "person" (the session subject).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies who was acting when something got logged.
type Person struct {
	ID       string
	Username string
	Email    string
}
