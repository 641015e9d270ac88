package core

// Reporter is any sink for user-visible outcome messages (toasts). The core
// calls it after every mutation; queuing and rendering live behind it.
type Reporter interface {
	Success(msg string)
	Error(msg string)
}

// NopReporter discards all messages.
type NopReporter struct{}

func (NopReporter) Success(string) {}
func (NopReporter) Error(string)   {}
