//go:build e2e

package e2e

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/recollect/pkg/client"
)

// recollectServer manages a running recollect serve process.
type recollectServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	logFile string
	client  *client.Client
}

// serverEnv configures the binary entirely through environment variables.
func serverEnv(dataDir string, port int) []string {
	return append(os.Environ(),
		fmt.Sprintf("RECOLLECT_PORT=%d", port),
		"RECOLLECT_CONFIG_PATH="+filepath.Join(dataDir, "nonexistent.yaml"),
		"RECOLLECT_DB_DRIVER=sqlite",
		"RECOLLECT_DB_DSN="+filepath.Join(dataDir, "recollect.db"),
		"RECOLLECT_FALLBACK_DIR="+filepath.Join(dataDir, "conversations"),
		"RECOLLECT_EMBEDDING_PROVIDER=hashing",
		"RECOLLECT_EMBEDDING_DIMENSIONS=128",
		"RECOLLECT_API_KEY="+testAPIKey,
	)
}

// startRecollect launches the binary and waits for it to become healthy.
func startRecollect(t *testing.T, dataDir string) *recollectServer {
	t.Helper()
	requireRecollect(t)

	port := freePort(t)
	s := &recollectServer{
		dataDir: dataDir,
		address: fmt.Sprintf("127.0.0.1:%d", port),
		logFile: filepath.Join(dataDir, fmt.Sprintf("recollect-%d.log", port)),
	}

	lf, err := os.Create(s.logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}

	s.cmd = exec.Command(recollectBin, "serve")
	s.cmd.Env = serverEnv(dataDir, port)
	s.cmd.Stdout = lf
	s.cmd.Stderr = lf
	if err := s.cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start recollect: %v", err)
	}
	t.Cleanup(func() {
		s.stop()
		lf.Close()
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		logs, _ := os.ReadFile(s.logFile)
		t.Fatalf("recollect not healthy: %v\n%s", err, logs)
	}

	s.client, err = client.New(client.Config{BaseURL: s.baseURL(), APIKey: testAPIKey})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return s
}

func (s *recollectServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil && s.cmd.ProcessState == nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
}

func (s *recollectServer) baseURL() string {
	return fmt.Sprintf("http://%s", s.address)
}

func (s *recollectServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("%s/api/v1/health", s.baseURL())

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("recollect not healthy after %s", timeout)
}

// runCLI runs a one-shot recollect command against dataDir.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	requireRecollect(t)

	cmd := exec.Command(recollectBin, args...)
	cmd.Env = serverEnv(dataDir, 0)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%v: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
