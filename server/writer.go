package server

import (
	"fmt"
	"net/http"
)

// FlushWriter pushes every write to the client immediately; SSE frames must
// not sit in the response buffer.
type FlushWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

// NewFlushWriter constructs a FlushWriter backed by the given ResponseWriter.
func NewFlushWriter(writer http.ResponseWriter) *FlushWriter {
	flusher, ok := writer.(http.Flusher)
	if !ok {
		flusher = nil
	}
	return &FlushWriter{writer: writer, flusher: flusher}
}

func (w *FlushWriter) Write(data []byte) (int, error) {
	if w.flusher == nil {
		return 0, fmt.Errorf("streaming not supported: %T does not support flushing", w.writer)
	}
	n, err := w.writer.Write(data)
	if err == nil {
		w.flusher.Flush()
	}
	return n, err
}
