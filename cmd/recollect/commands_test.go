package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testExport = `[
  {
    "title": "Learning",
    "mapping": {
      "a1": {"id": "a1", "message": {"author": {"role": "user"}, "content": {"parts": ["How do I learn Python?"]}}},
      "a2": {"id": "a2", "message": {"author": {"role": "assistant"}, "content": {"parts": ["Start with basics"]}}}
    }
  },
  {
    "title": "Travel",
    "mapping": {
      "b1": {"id": "b1", "message": {"author": {"role": "user"}, "content": {"parts": ["What is the capital of France?"]}}},
      "b2": {"id": "b2", "message": {"author": {"role": "assistant"}, "content": {"parts": ["Paris"]}}}
    }
  }
]`

// setupEnv points configuration at a temporary sqlite database and fallback
// directory with the hashing embedder. It returns the path of an export file.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	t.Setenv("RECOLLECT_CONFIG_PATH", filepath.Join(dir, "absent.yaml"))
	t.Setenv("RECOLLECT_DB_DRIVER", "sqlite")
	t.Setenv("RECOLLECT_DB_DSN", filepath.Join(dir, "recollect.db"))
	t.Setenv("RECOLLECT_FALLBACK_DIR", filepath.Join(dir, "conversations"))
	t.Setenv("RECOLLECT_EMBEDDING_PROVIDER", "hashing")
	t.Setenv("RECOLLECT_EMBEDDING_DIMENSIONS", "64")
	t.Setenv("RECOLLECT_LOG_LEVEL", "error")

	export := filepath.Join(dir, "conversations.json")
	if err := os.WriteFile(export, []byte(testExport), 0o644); err != nil {
		t.Fatal(err)
	}
	return export
}

// executeCmd runs the root command with captured output.
func executeCmd(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	// Cobra parses into package-level variables; reset them so values from
	// previous tests do not leak.
	configPath = ""
	jsonOutput = false
	deleteForce = false
	searchTopK = 0

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err = rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetIn(nil)
	rootCmd.SetArgs(nil)

	return outBuf.String(), errBuf.String(), err
}

func mustExtract(t *testing.T, export, uuid string) {
	t.Helper()
	if _, stderr, err := executeCmd(t, "", "extract", uuid, export); err != nil {
		t.Fatalf("extract failed: %v (stderr: %s)", err, stderr)
	}
}

func TestExtract_TextOutput(t *testing.T) {
	export := setupEnv(t)

	stdout, _, err := executeCmd(t, "", "extract", "user-1", export)
	if err != nil {
		t.Fatalf("extract error = %v", err)
	}
	if !strings.Contains(stdout, `Indexed 2 prompts for "user-1"`) {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stdout, "2 x 64") {
		t.Errorf("stdout missing embedding shape: %q", stdout)
	}
}

func TestExtract_JSONFromStdin(t *testing.T) {
	setupEnv(t)

	stdout, _, err := executeCmd(t, testExport, "extract", "user-1", "-", "--json")
	if err != nil {
		t.Fatalf("extract error = %v", err)
	}

	var resp struct {
		Success        bool   `json:"success"`
		DocumentCount  int    `json:"document_count"`
		EmbeddingShape [2]int `json:"embedding_shape"`
		Revision       string `json:"revision"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if !resp.Success || resp.DocumentCount != 2 || resp.EmbeddingShape != [2]int{2, 64} || resp.Revision == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestExtract_InvalidExport(t *testing.T) {
	setupEnv(t)

	if _, _, err := executeCmd(t, `{"not": "a list"}`, "extract", "user-1", "-"); err == nil {
		t.Error("extract of a non-list export succeeded")
	}
}

func TestExtract_MissingFile(t *testing.T) {
	setupEnv(t)

	_, _, err := executeCmd(t, "", "extract", "user-1", filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "read export") {
		t.Errorf("error = %v, want read export error", err)
	}
}

func TestSearch_JSON(t *testing.T) {
	export := setupEnv(t)
	mustExtract(t, export, "user-1")

	stdout, _, err := executeCmd(t, "", "search", "user-1", "What is the capital of France?", "--top-k", "1", "--json")
	if err != nil {
		t.Fatalf("search error = %v", err)
	}

	var resp struct {
		Results []struct {
			Key        string  `json:"key"`
			Similarity float32 `json:"similarity"`
			Content    string  `json:"content"`
		} `json:"results"`
		TotalResults int `json:"total_results"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if resp.TotalResults != 1 || len(resp.Results) != 1 {
		t.Fatalf("results = %+v", resp)
	}
	if resp.Results[0].Key != "What is the capital of France?" || resp.Results[0].Content != "Paris" {
		t.Errorf("top result = %+v", resp.Results[0])
	}
}

func TestSearch_Table(t *testing.T) {
	export := setupEnv(t)
	mustExtract(t, export, "user-1")

	stdout, _, err := executeCmd(t, "", "search", "user-1", "learn Python")
	if err != nil {
		t.Fatalf("search error = %v", err)
	}
	if !strings.Contains(stdout, "RANK") || !strings.Contains(stdout, "Start with basics") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestSearch_NegativeTopK(t *testing.T) {
	setupEnv(t)

	_, _, err := executeCmd(t, "", "search", "user-1", "anything", "--top-k=-1")
	if err == nil || !strings.Contains(err.Error(), "top_k") {
		t.Errorf("error = %v, want top_k validation error", err)
	}
}

func TestSearch_TopKAboveMax(t *testing.T) {
	setupEnv(t)

	_, _, err := executeCmd(t, "", "search", "user-1", "anything", "--top-k=101")
	if err == nil || !strings.Contains(err.Error(), "must not exceed 100") {
		t.Errorf("error = %v, want top_k bound error", err)
	}
}

func TestSearch_UnknownUser(t *testing.T) {
	setupEnv(t)

	if _, _, err := executeCmd(t, "", "search", "nobody", "anything"); err == nil {
		t.Error("search for unknown user succeeded")
	}
}

func TestBundleList_Empty(t *testing.T) {
	setupEnv(t)

	stdout, _, err := executeCmd(t, "", "bundle", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(stdout, "No bundles found.") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestBundleList_JSONAfterMirror(t *testing.T) {
	export := setupEnv(t)
	mustExtract(t, export, "user-1")

	if _, _, err := executeCmd(t, "", "bundle", "mirror", "user-1"); err != nil {
		t.Fatalf("mirror error = %v", err)
	}

	stdout, _, err := executeCmd(t, "", "bundle", "list", "--json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}

	var resp struct {
		Bundles []struct {
			UUID   string `json:"uuid"`
			Source string `json:"source"`
		} `json:"bundles"`
		Total int `json:"total"`
		Stats struct {
			PrimaryCount  int64 `json:"primary_count"`
			FallbackCount int64 `json:"fallback_count"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want one entry per backend", resp.Total)
	}
	sources := map[string]bool{}
	for _, b := range resp.Bundles {
		if b.UUID != "user-1" {
			t.Errorf("uuid = %q", b.UUID)
		}
		sources[b.Source] = true
	}
	if !sources["sqlite"] || !sources["document"] {
		t.Errorf("sources = %v", sources)
	}
	if resp.Stats.PrimaryCount != 1 || resp.Stats.FallbackCount != 1 {
		t.Errorf("stats = %+v, want one bundle per backend", resp.Stats)
	}
}

func TestBundleList_Table(t *testing.T) {
	export := setupEnv(t)
	mustExtract(t, export, "user-1")

	stdout, _, err := executeCmd(t, "", "bundle", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(stdout, "UUID") || !strings.Contains(stdout, "user-1") || !strings.Contains(stdout, "sqlite") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stdout, "sqlite: 1 bundle, document: 0 bundles") {
		t.Errorf("stdout missing backend counts: %q", stdout)
	}
}

func TestBundleInfo(t *testing.T) {
	export := setupEnv(t)
	mustExtract(t, export, "user-1")

	stdout, _, err := executeCmd(t, "", "bundle", "info", "user-1")
	if err != nil {
		t.Fatalf("info error = %v", err)
	}
	for _, want := range []string{"user-1", "sqlite", "healthy", "2 x 64"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q: %q", want, stdout)
		}
	}
}

func TestBundleInfo_JSON(t *testing.T) {
	export := setupEnv(t)
	mustExtract(t, export, "user-1")

	stdout, _, err := executeCmd(t, "", "bundle", "info", "user-1", "--json")
	if err != nil {
		t.Fatalf("info error = %v", err)
	}
	var resp struct {
		Status         string `json:"status"`
		ReadyForSearch bool   `json:"ready_for_search"`
		Model          string `json:"model"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if resp.Status != "healthy" || !resp.ReadyForSearch || resp.Model != "hashing-64" {
		t.Errorf("response = %+v", resp)
	}
}

func TestBundleInfo_Missing(t *testing.T) {
	setupEnv(t)

	if _, _, err := executeCmd(t, "", "bundle", "info", "nobody"); err == nil {
		t.Error("info for missing bundle succeeded")
	}
}

func TestBundleDelete_WithForce(t *testing.T) {
	export := setupEnv(t)
	mustExtract(t, export, "user-1")

	stdout, _, err := executeCmd(t, "", "bundle", "delete", "user-1", "--force")
	if err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if !strings.Contains(stdout, `Deleted bundle "user-1"`) {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = executeCmd(t, "", "bundle", "delete", "user-1", "--force", "--json")
	if err != nil {
		t.Fatalf("second delete error = %v", err)
	}
	var resp struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if resp.Success || resp.Status != "not_found_anywhere" {
		t.Errorf("second delete = %+v, want not_found_anywhere", resp)
	}
}

func TestBundleDelete_InteractiveConfirmation(t *testing.T) {
	export := setupEnv(t)
	mustExtract(t, export, "user-1")

	stdout, stderr, err := executeCmd(t, "user-1\n", "bundle", "delete", "user-1")
	if err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if !strings.Contains(stderr, "WARNING") {
		t.Errorf("stderr = %q, want warning", stderr)
	}
	if !strings.Contains(stdout, "Deleted bundle") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestBundleDelete_InteractiveAbort(t *testing.T) {
	export := setupEnv(t)
	mustExtract(t, export, "user-1")

	_, stderr, err := executeCmd(t, "someone-else\n", "bundle", "delete", "user-1")
	if err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if !strings.Contains(stderr, "Aborted") {
		t.Errorf("stderr = %q, want abort notice", stderr)
	}

	if _, _, err := executeCmd(t, "", "bundle", "info", "user-1"); err != nil {
		t.Errorf("bundle gone after aborted delete: %v", err)
	}
}

func TestBundleDelete_InvalidUUID(t *testing.T) {
	setupEnv(t)

	if _, _, err := executeCmd(t, "", "bundle", "delete", "bad id!", "--force"); err == nil {
		t.Error("delete with invalid uuid succeeded")
	}
}

func TestBundleMirror_Missing(t *testing.T) {
	setupEnv(t)

	if _, _, err := executeCmd(t, "", "bundle", "mirror", "nobody"); err == nil {
		t.Error("mirror of missing bundle succeeded")
	}
}

func TestConfigFlag(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "recollect.yaml")
	yaml := "embedding:\n  provider: hashing\n  dimensions: 0\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	// Env overrides still apply on top of the file.
	t.Setenv("RECOLLECT_EMBEDDING_DIMENSIONS", "")

	_, _, err := executeCmd(t, "", "bundle", "list", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "dimensions") {
		t.Errorf("error = %v, want dimensions validation error from the file", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 40, "line one line two"},
		{"abcdefghij", 6, "abc..."},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
