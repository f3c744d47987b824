package e2e

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperengineering/recollect/internal/api"
	"github.com/hyperengineering/recollect/internal/config"
	"github.com/hyperengineering/recollect/internal/service"
	"github.com/hyperengineering/recollect/pkg/client"
)

const testAPIKey = "e2e-test-api-key"

// exportTree is one conversation in a generated export.
type exportTree struct {
	Title string
	Pairs [][2]string
}

// buildExport renders conversation trees in the export format with mapping
// members in document order.
func buildExport(trees ...exportTree) []byte {
	var b strings.Builder
	b.WriteString("[")
	for i, tree := range trees {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"title":%q,"mapping":{`, tree.Title)
		for j, pair := range tree.Pairs {
			if j > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, `"n%d-%d-u":{"message":{"author":{"role":"user"},"content":{"parts":[%q]}}},`, i, j, pair[0])
			fmt.Fprintf(&b, `"n%d-%d-a":{"message":{"author":{"role":"assistant"},"content":{"parts":[%q]}}}`, i, j, pair[1])
		}
		b.WriteString("}}")
	}
	b.WriteString("]")
	return []byte(b.String())
}

func sampleExport() []byte {
	return buildExport(
		exportTree{Title: "Learning", Pairs: [][2]string{
			{"How do I learn Python?", "Start with basics"},
			{"Which Python book should I read first?", "Automate the Boring Stuff"},
		}},
		exportTree{Title: "Travel", Pairs: [][2]string{
			{"What is the capital of France?", "Paris"},
			{"Recommend a pizza topping", "Mushrooms"},
		}},
	)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{MaxBodyBytes: 64 << 10},
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
			Dimensions:  256,
			BatchSize:   2,
			Concurrency: 2,
		},
		Search: config.SearchConfig{DefaultTopK: 6, MaxTopK: 100},
		Auth:   config.AuthConfig{APIKey: testAPIKey},
	}
}

// testEnv is an in-process server backed by the full service stack.
type testEnv struct {
	server *httptest.Server
	client *client.Client
	cfg    *config.Config
	logs   *bytes.Buffer
}

func startInProcess(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig(t)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rt, err := service.Open(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("service.Open() error = %v", err)
	}
	t.Cleanup(func() { rt.Close() })

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(rt, cfg.Auth.APIKey, "e2e", cfg.Server.MaxBodyBytes,
		api.WithMaxTopK(cfg.Search.MaxTopK))))
	t.Cleanup(srv.Close)

	c, err := client.New(client.Config{BaseURL: srv.URL, APIKey: testAPIKey})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return &testEnv{server: srv, client: c, cfg: cfg, logs: logs}
}

func (e *testEnv) extract(t *testing.T, uuid string, export []byte) *client.ExtractResponse {
	t.Helper()
	res, err := e.client.Extract(context.Background(), uuid, bytes.NewReader(export))
	if err != nil {
		t.Fatalf("Extract(%s) error = %v", uuid, err)
	}
	return res
}

func statusOf(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
