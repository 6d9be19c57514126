package langgraph

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one dispatched Server-Sent Event.
type sseEvent struct {
	Event string
	Data  string
}

// sseReader splits a text/event-stream body into events.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &sseReader{scanner: sc}
}

// Next returns the next event, or io.EOF when the body ends.
func (r *sseReader) Next() (sseEvent, error) {
	var (
		ev   sseEvent
		data []string
		seen bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if !seen {
				continue
			}
			ev.Data = strings.Join(data, "\n")
			if ev.Event == "" {
				ev.Event = "message"
			}
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Event = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return sseEvent{}, err
	}
	if seen {
		ev.Data = strings.Join(data, "\n")
		if ev.Event == "" {
			ev.Event = "message"
		}
		return ev, nil
	}
	return sseEvent{}, io.EOF
}
