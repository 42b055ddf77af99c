package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	logger := Component("selector")
	logger.Info().Msg("test message")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}

	if cmp := logEntry["cmp"]; cmp != "selector" {
		t.Errorf("Component() cmp = %q, want %q", cmp, "selector")
	}

	if msg := logEntry["message"]; msg != "test message" {
		t.Errorf("Component() message = %q, want %q", msg, "test message")
	}
}
