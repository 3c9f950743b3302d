// Package sse writes text/event-stream responses.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type Writer struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// Start sends stream headers and flushes them so the client sees the stream open.
func Start(w http.ResponseWriter) (*Writer, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sw := &Writer{w: w, rc: http.NewResponseController(w)}
	if err := sw.rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming unsupported: %w", err)
	}
	return sw, nil
}

// Event writes one named event with a JSON payload.
func (s *Writer) Event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Comment writes a comment line, used as a keep-alive.
func (s *Writer) Comment(text string) error {
	text = strings.ReplaceAll(text, "\n", " ")
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	return s.rc.Flush()
}
