package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	appErrors "github.com/1282saa/paperone/pkg/errors"
)

type textFrame struct {
	Text string `json:"text"`
}

type doneFrame struct {
	Done bool `json:"done"`
}

// sseWriter writes server-sent event frames and flushes each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, appErrors.NewInternal("streaming is not supported by this connection", nil)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) frame(v interface{}) error {
	var buf bytes.Buffer
	buf.WriteString("data: ")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode ends with a newline; one more terminates the event.
	buf.WriteByte('\n')
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// relay forwards fragments as {"text":...} frames until the channel closes,
// then writes {"done":true}. It stops without the done frame when ctx ends
// or a write fails.
func (s *sseWriter) relay(ctx context.Context, fragments <-chan string) error {
	for {
		select {
		case fragment, ok := <-fragments:
			if !ok {
				return s.frame(doneFrame{Done: true})
			}
			if err := s.frame(textFrame{Text: fragment}); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
