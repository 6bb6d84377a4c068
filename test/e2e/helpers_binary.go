//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// lifexpServer manages a running `lifexp serve` process.
type lifexpServer struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	dataDir string
	port    int
	apiKey  string
	logFile string
	extra   []string
}

// startServer launches `lifexp serve` and waits for it to become healthy.
// The server is configured entirely through environment variables.
func startServer(t *testing.T, extraEnv ...string) *lifexpServer {
	t.Helper()
	requireLifexp(t)

	s := &lifexpServer{
		dataDir: t.TempDir(),
		port:    freePort(t),
		apiKey:  "e2e-test-api-key",
		extra:   extraEnv,
	}
	s.logFile = filepath.Join(s.dataDir, "server.log")
	s.start(t)
	t.Cleanup(s.stop)
	return s
}

func (s *lifexpServer) start(t *testing.T) {
	t.Helper()
	cmd := exec.Command(lifexpBin, "serve")
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("LIFEXP_PORT=%d", s.port),
		"LIFEXP_DB_PATH="+filepath.Join(s.dataDir, "server.db"),
		"LIFEXP_API_KEY="+s.apiKey,
		"LIFEXP_CONFIG_PATH="+filepath.Join(s.dataDir, "nonexistent.yaml"),
		"LIFEXP_ENV_FILE="+filepath.Join(s.dataDir, "nonexistent.env"),
	)
	cmd.Env = append(cmd.Env, s.extra...)

	lf, err := os.OpenFile(s.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	cmd.Stdout = lf
	cmd.Stderr = lf
	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start lifexp serve: %v", err)
	}
	s.cmd = cmd
	s.exited = make(chan struct{})
	go func(exited chan struct{}) {
		_ = cmd.Wait()
		lf.Close()
		close(exited)
	}(s.exited)

	if err := s.waitHealthy(10 * time.Second); err != nil {
		log, _ := os.ReadFile(s.logFile)
		t.Fatalf("lifexp serve not healthy: %v\n%s", err, log)
	}
}

func (s *lifexpServer) stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case <-s.exited:
	case <-time.After(10 * time.Second):
		_ = s.cmd.Process.Kill()
		<-s.exited
	}
	s.cmd = nil
}

// restart stops the server and starts it again on the same data directory.
func (s *lifexpServer) restart(t *testing.T) {
	t.Helper()
	s.stop()
	s.start(t)
}

func (s *lifexpServer) baseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

func (s *lifexpServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := s.baseURL() + "/api/v1/health"
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
	return fmt.Errorf("not healthy after %s", timeout)
}

// snapshotStatus fetches a user's snapshot and returns the HTTP status.
func (s *lifexpServer) snapshotStatus(t *testing.T, userID string) int {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, s.baseURL()+"/api/v1/users/"+userID+"/snapshot", nil)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

// device is one CLI installation with its own local database.
type device struct {
	dir string
	env []string
}

// newDevice returns a device that syncs with srv as userID. A nil srv gives
// an offline device.
func newDevice(t *testing.T, srv *lifexpServer, userID string) *device {
	t.Helper()
	requireLifexp(t)
	d := &device{dir: t.TempDir()}
	d.env = []string{
		"LIFEXP_DB_PATH=" + filepath.Join(d.dir, "lifexp.db"),
		"LIFEXP_CONFIG_PATH=" + filepath.Join(d.dir, "nonexistent.yaml"),
		"LIFEXP_ENV_FILE=" + filepath.Join(d.dir, "nonexistent.env"),
		"LIFEXP_SYNC_DEBOUNCE=50ms",
	}
	if srv == nil {
		d.env = append(d.env, "LIFEXP_SYNC_BACKEND=none")
	} else {
		d.env = append(d.env,
			"LIFEXP_SYNC_BACKEND=http",
			"LIFEXP_SYNC_URL="+srv.baseURL(),
			"LIFEXP_SYNC_API_KEY="+srv.apiKey,
			"LIFEXP_SYNC_USER_ID="+userID,
		)
	}
	return d
}

// run executes a CLI command and returns stdout and stderr.
func (d *device) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(lifexpBin, append([]string{"--yes"}, args...)...)
	cmd.Env = append(os.Environ(), d.env...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func (d *device) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := d.run(t, "", args...)
	if err != nil {
		t.Fatalf("lifexp %s: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return stdout
}

// statusView is the subset of `lifexp status --json` the tests inspect.
type statusView struct {
	PlayerName   string `json:"player_name"`
	TotalMinutes int    `json:"total_minutes"`
	Global       struct {
		TotalXP int `json:"total_xp"`
		WeekXP  int `json:"week_xp"`
	} `json:"global"`
	Level struct {
		Level int `json:"level"`
	} `json:"level"`
	FreshInstall bool `json:"fresh_install"`
}

func (d *device) status(t *testing.T) statusView {
	t.Helper()
	var st statusView
	if err := json.Unmarshal([]byte(d.mustRun(t, "status", "--json")), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

// freePort returns an available TCP port on localhost.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
