package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/recollect/internal/config"
)

// logCapture captures slog output for testing
type logCapture struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (c *logCapture) handler() slog.Handler {
	return slog.NewJSONHandler(c, &slog.HandlerOptions{Level: slog.LevelDebug})
}

func (c *logCapture) Write(p []byte) (n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err == nil {
		c.entries = append(c.entries, entry)
	}
	return len(p), nil
}

func (c *logCapture) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var msgs []string
	for _, e := range c.entries {
		if msg, ok := e["msg"].(string); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func (c *logCapture) messageIndex(msg string) int {
	for i, m := range c.messages() {
		if m == msg {
			return i
		}
	}
	return -1
}

func useCapture(t *testing.T) *logCapture {
	t.Helper()
	capture := &logCapture{}
	old := slog.Default()
	slog.SetDefault(slog.New(capture.handler()))
	t.Cleanup(func() { slog.SetDefault(old) })
	return capture
}

func serveConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{
			Port:            port,
			ReadTimeout:     config.Duration(time.Second),
			WriteTimeout:    config.Duration(time.Second),
			ShutdownTimeout: config.Duration(time.Second),
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         filepath.Join(dir, "recollect.db"),
			AutoMigrate: true,
		},
		Fallback: config.FallbackConfig{
			Dir:    filepath.Join(dir, "conversations"),
			Suffix: "userData.json",
		},
		Embedding: config.EmbeddingConfig{
			Provider:    "hashing",
			Dimensions:  64,
			BatchSize:   8,
			Concurrency: 1,
		},
		Search: config.SearchConfig{DefaultTopK: 6, MaxTopK: 100},
	}
}

func TestServe_ShutdownSequence(t *testing.T) {
	capture := useCapture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, serveConfig(t, 0)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not return after cancellation")
	}

	order := []string{"service initialized", "router initialized", "shutdown initiated", "shutdown complete"}
	prev := -1
	for _, msg := range order {
		idx := capture.messageIndex(msg)
		if idx < 0 {
			t.Errorf("missing log message %q", msg)
			continue
		}
		if idx < prev {
			t.Errorf("log message %q out of order", msg)
		}
		prev = idx
	}
}

func TestServe_ListenFailureReturnsError(t *testing.T) {
	capture := useCapture(t)

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), serveConfig(t, -1)) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("serve() error = nil, want listen error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not return after listen failure")
	}

	if capture.messageIndex("server error") < 0 {
		t.Error("expected 'server error' log message")
	}
	if capture.messageIndex("shutdown complete") < 0 {
		t.Error("expected 'shutdown complete' log message")
	}
}

func TestServe_OpenFailure(t *testing.T) {
	useCapture(t)
	cfg := serveConfig(t, 0)
	cfg.Embedding.Provider = "nope"

	if err := serve(context.Background(), cfg); err == nil {
		t.Error("serve() error = nil, want embedder error")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Log: config.LogConfig{Level: "warn", Format: "text"}}

	logger := newLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "k=v") {
		t.Errorf("text output = %q", out)
	}

	buf.Reset()
	cfg.Log.Format = "json"
	newLogger(cfg, &buf).Warn("shown")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json output not parseable: %v", err)
	}
	if entry["msg"] != "shown" {
		t.Errorf("msg = %v", entry["msg"])
	}
}
