package e2e

import (
	"os"
	"os/exec"
	"testing"
)

var recollectBin string

func TestMain(m *testing.M) {
	recollectBin = envOrLookPath("RECOLLECT_BIN", "recollect")
	os.Exit(m.Run())
}

func envOrLookPath(envVar, name string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}

func requireRecollect(t *testing.T) {
	t.Helper()
	if recollectBin == "" {
		t.Skip("recollect binary not available (set RECOLLECT_BIN or add to PATH)")
	}
}
