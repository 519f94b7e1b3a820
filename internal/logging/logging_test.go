package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"mpproj/internal/logging"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "debug", "json")
	if err != nil {
		t.Fatal(err)
	}
	log.Debug().Str("op", "add").Msg("mutation")
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not json: %q", buf.String())
	}
	if line["op"] != "add" || line["level"] != "debug" || line["message"] != "mutation" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
}

func TestRejectsBadInput(t *testing.T) {
	if _, err := logging.New(nil, "loud", "json"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := logging.New(nil, "info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}
