package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/interlude/pkg/domain"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
//
// Every reply is written as {"type":"reply", ...reply fields} and every system
// message as {"type":"system","message":...}. Input lines may be a JSON string,
// an object with a "message" field, or plain text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

type jsonReply struct {
	Type string `json:"type"`
	*domain.Reply
}

func (h *JSONHandler) Output(ctx context.Context, reply *domain.Reply) error {
	return h.Encoder.Encode(jsonReply{Type: "reply", Reply: reply})
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	var val string
	var msg struct {
		Message *string `json:"message"`
	}
	switch {
	case json.Unmarshal([]byte(text), &val) == nil:
		text = val
	case json.Unmarshal([]byte(text), &msg) == nil && msg.Message != nil:
		text = *msg.Message
	}
	return SanitizeInput(text)
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"type": "system", "message": msg})
}
