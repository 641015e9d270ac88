package reportsvc

import (
	"bytes"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(log.New(&buf, "", 0))

	r.Success("section created")
	r.Error("could not save section")

	assert.Equal(t, "OK: section created\nERROR: could not save section\n", buf.String())
}

func TestQueueReporterDrain(t *testing.T) {
	r := NewQueueReporter()

	r.Success("first")
	r.Error("second")
	r.Success("third")

	want := []Message{
		{Success: true, Text: "first"},
		{Text: "second"},
		{Success: true, Text: "third"},
	}
	assert.Equal(t, want, r.Drain())

	// drained; nothing left
	assert.Empty(t, r.Drain())
}

func TestQueueReporterConcurrent(t *testing.T) {
	r := NewQueueReporter()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Success("done")
		}()
	}
	wg.Wait()

	assert.Len(t, r.Drain(), 10)
}
