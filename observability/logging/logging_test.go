package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("pollsd", "prod", Options{Output: &buf})
	logger.Info("block advanced", "height", 7)

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing %q in %v", key, line)
		}
	}
	if line["severity"] != "INFO" || line["message"] != "block advanced" {
		t.Fatalf("unexpected line %v", line)
	}

	buf.Reset()
	logger.Debug("hidden in prod")
	if buf.Len() != 0 {
		t.Fatalf("debug line emitted in prod: %s", buf.String())
	}

	log.Printf("bridged")
	if !strings.Contains(buf.String(), `"message":"bridged"`) {
		t.Fatalf("std logger not bridged: %s", buf.String())
	}
}

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pollsd.log")
	var buf bytes.Buffer
	logger := Setup("pollsd", "dev", Options{Output: &buf, File: path, MaxSizeMB: 1})
	logger.Debug("to file")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "to file") {
		t.Fatalf("file missing line: %s", raw)
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("token", "abc").Value.String(); got != RedactedValue {
		t.Fatalf("token not masked: %s", got)
	}
	if got := MaskField("method", "polls_vote").Value.String(); got != "polls_vote" {
		t.Fatalf("method masked: %s", got)
	}
	if got := MaskField("token", "").Value.String(); got != "" {
		t.Fatalf("empty value changed: %s", got)
	}
}
