package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// writeConfig writes a SQLite-backed config with optional services off.
func writeConfig(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := fmt.Sprintf(`
api:
  host: "127.0.0.1"
  port: %d
  timeouts:
    read: 5
    write: 5
    idle: 5

database:
  driver: sqlite
  sqlite:
    path: %q
    wal_mode: true
    busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`, port, filepath.Join(dir, "steamcity.db"))

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("STEAMCITY_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("STEAMCITY_CONFIG", "/etc/steamcity/config.yaml")
	if got := getConfigPath(); got != "/etc/steamcity/config.yaml" {
		t.Errorf("getConfigPath() = %q, want %q", got, "/etc/steamcity/config.yaml")
	}
}

// TestRun_InvalidConfig verifies run fails on an unparsable config file.
func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: [not, a, map"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STEAMCITY_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with an invalid config file")
	}
}

// TestRun_UnknownDriver verifies run fails before opening any store.
func TestRun_UnknownDriver(t *testing.T) {
	t.Setenv("STEAMCITY_CONFIG", writeConfig(t, freePort(t)))
	t.Setenv("STEAMCITY_DATABASE_DRIVER", "postgres")

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail with an unknown database driver")
	}
}

// TestRun_SuccessfulStartupAndShutdown starts the server on SQLite, checks
// it answers and stops it by cancelling the context.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	port := freePort(t)
	t.Setenv("STEAMCITY_CONFIG", writeConfig(t, port))
	t.Setenv("STEAMCITY_DATABASE_DRIVER", "")
	t.Setenv("MONGODB_URI", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/health", port)
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		resp, err = http.Get(url) //nolint:gosec // test URL
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if resp == nil {
		cancel()
		t.Fatalf("server never answered on %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if health.Status != "healthy" || health.Database != "connected" {
		t.Errorf("health = %+v, want healthy/connected", health)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

// TestRun_ContextCancelledDuringStartup verifies a cancelled context does
// not leave run blocked.
func TestRun_ContextCancelledDuringStartup(t *testing.T) {
	t.Setenv("STEAMCITY_CONFIG", writeConfig(t, freePort(t)))
	t.Setenv("STEAMCITY_DATABASE_DRIVER", "")
	t.Setenv("MONGODB_URI", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return with a cancelled context")
	}
}
