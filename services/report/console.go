package reportsvc

import (
	"log"
	"sync"

	"github.com/trezcool/darasa/core"
)

// ConsoleReporter prints outcome messages to a std logger; good enough for
// CLIs and local development.
type ConsoleReporter struct {
	std *log.Logger
}

var _ core.Reporter = (*ConsoleReporter)(nil)

func NewConsoleReporter(std *log.Logger) *ConsoleReporter {
	return &ConsoleReporter{std: std}
}

func (r ConsoleReporter) Success(msg string) { r.std.Printf("OK: %s", msg) }
func (r ConsoleReporter) Error(msg string)   { r.std.Printf("ERROR: %s", msg) }

// QueueReporter collects messages in order for a presentation layer to drain;
// one process-wide queue regardless of how many components report into it.
type QueueReporter struct {
	mu   sync.Mutex
	msgs []Message
}

type Message struct {
	Success bool
	Text    string
}

var _ core.Reporter = (*QueueReporter)(nil)

func NewQueueReporter() *QueueReporter { return &QueueReporter{} }

func (r *QueueReporter) Success(msg string) { r.push(Message{Success: true, Text: msg}) }
func (r *QueueReporter) Error(msg string)   { r.push(Message{Text: msg}) }

func (r *QueueReporter) push(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

// Drain returns and clears all queued messages.
func (r *QueueReporter) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.msgs
	r.msgs = nil
	return msgs
}
