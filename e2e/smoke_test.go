//go:build e2e

package e2e

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const repoRootRel = ".."          // relative to ./e2e
const mainPkgRel = "./cmd/server" // server main.go lives in cmd/server/

// datasetStatements build a tiny Hawaii dataset. They are plain SQL accepted
// by sqlite, postgres and mysql alike.
var datasetStatements = []string{
	`CREATE TABLE station (id INTEGER PRIMARY KEY, station VARCHAR(16), name VARCHAR(64), latitude DOUBLE PRECISION, longitude DOUBLE PRECISION, elevation DOUBLE PRECISION)`,
	`CREATE TABLE measurement (id INTEGER PRIMARY KEY, station VARCHAR(16), date VARCHAR(10), prcp DOUBLE PRECISION, tobs DOUBLE PRECISION)`,
	`INSERT INTO station (id, station, name, latitude, longitude, elevation) VALUES (1, 'USC00519281', 'WAIKIKI', 21.3, -157.8, 3.0)`,
	`INSERT INTO measurement (id, station, date, prcp, tobs) VALUES (1, 'USC00519281', '2016-08-22', 0.1, 70)`,
	`INSERT INTO measurement (id, station, date, prcp, tobs) VALUES (2, 'USC00519281', '2016-08-23', NULL, 77)`,
	`INSERT INTO measurement (id, station, date, prcp, tobs) VALUES (3, 'USC00519281', '2017-08-23', 0.45, 79)`,
}

func TestSmoke_ClimateAPI(t *testing.T) {
	// Start SQLite "service" container that writes the dataset into a host temp dir
	sqlitePath := startSQLite(t)

	checkClimateAPI(t, "DB_DRIVER=sqlite3", "SQLITE_PATH="+sqlitePath)
}

// checkClimateAPI runs the server binary with the given dataset env and
// checks every route against datasetStatements.
func checkClimateAPI(t *testing.T, datasetEnv ...string) {
	t.Helper()

	bin := buildBinary(t, repoRootPath(t))
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"ENV_FILE="+filepath.Join(t.TempDir(), "none.env"),
	)
	cmd.Env = append(cmd.Env, datasetEnv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + addr

	waitForOK(t, client, base+"/healthz", 5*time.Second)

	tests := []struct {
		path string
		want string
	}{
		{path: "/api/v1.0/stations", want: `[{"station":"USC00519281","name":"WAIKIKI","latitude":21.3,"longitude":-157.8,"elevation":3}]`},
		{path: "/api/v1.0/precipitation", want: `{"2016-08-23":null,"2017-08-23":0.45}`},
		{path: "/api/v1.0/tobs", want: `[{"Date":"2016-08-23","Temperature Observation":77},{"Date":"2017-08-23","Temperature Observation":79}]`},
		{path: "/api/v1.0/USC00519281/2016-08-23", want: `[{"Minimum Temperature":70,"Average Temperature":73.5,"Maximum Temperature":77}]`},
		{path: "/api/v1.0/ZZZ/2017-01-02", want: `[{"Minimum Temperature":null,"Average Temperature":null,"Maximum Temperature":null}]`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := get(t, client, base+tt.path)
			if status != http.StatusOK {
				t.Fatalf("status=%d want=%d", status, http.StatusOK)
			}
			if body != tt.want {
				t.Fatalf("body=%s want=%s", body, tt.want)
			}
		})
	}

	if status, _ := get(t, client, base+"/unknown/path"); status != http.StatusNotFound {
		t.Fatalf("unknown path status=%d want=%d", status, http.StatusNotFound)
	}

	stopServer(t, cmd)
}

func TestSmoke_MissingDatasetFailsFast(t *testing.T) {
	bin := buildBinary(t, repoRootPath(t))

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"HTTP_ADDR="+pickFreeAddr(t),
		"ENV_FILE="+filepath.Join(t.TempDir(), "none.env"),
		"SQLITE_PATH="+filepath.Join(t.TempDir(), "missing.sqlite"),
	)

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			t.Fatalf("exit err=%v want exit status 1", err)
		}
	case <-time.After(10 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("server kept running without a dataset")
	}
}

func get(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, strings.TrimSpace(string(b))
}

func startSQLite(t *testing.T) string {
	t.Helper()

	// Host temp dir that will contain hawaii.sqlite
	hostDir := t.TempDir()
	dbPath := filepath.Join(hostDir, "hawaii.sqlite")

	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:      "nouchka/sqlite3:latest",
		WorkingDir: "/data",
		// Build the dataset and keep container alive
		Entrypoint: []string{"sh", "-c"},
		Cmd: []string{
			"sqlite3 /data/hawaii.sqlite \"$DATASET_SQL\" && chmod 644 /data/hawaii.sqlite && " +
				"echo 'sqlite ready' && " +
				"tail -f /dev/null",
		},
		Env: map[string]string{"DATASET_SQL": strings.Join(datasetStatements, ";\n") + ";"},

		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds, hostDir+":/data")
		},
		WaitingFor: wait.ForLog("sqlite ready").WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start sqlite container: %v", err)
	}

	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	// Ensure file exists on host (container created it in the bind mount)
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("sqlite db file not created: %v", err)
	}

	return dbPath
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	tmp := t.TempDir()
	out := filepath.Join(tmp, "climate-server")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
