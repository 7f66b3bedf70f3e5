package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mukuvi/mukuvios/pkg/process"
)

func newTestManager(t *testing.T) (*Manager, *process.Registry) {
	t.Helper()
	procs := process.NewRegistry()
	m, err := NewManager(procs)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, procs
}

func TestCatalogSeeding(t *testing.T) {
	m, procs := newTestManager(t)

	all := m.List()
	if len(all) != 8 {
		t.Fatalf("catalog has %d services, want 8", len(all))
	}

	ssh, err := m.Status("ssh")
	if err != nil {
		t.Fatal(err)
	}
	if ssh.State != StateRunning || !ssh.AutoStart {
		t.Errorf("ssh = %+v, want running and enabled", ssh)
	}
	if ssh.PID == 0 {
		t.Error("running ssh has no pid")
	}
	if procs.Get(ssh.PID) == nil {
		t.Error("ssh pid not present in process registry")
	}

	for _, name := range []string{"apache2", "mysql", "postgresql", "redis", "nginx", "docker", "metasploit"} {
		st, err := m.Status(name)
		if err != nil {
			t.Fatalf("Status(%s): %v", name, err)
		}
		if st.State != StateStopped {
			t.Errorf("%s seeded %s, want stopped", name, st.State)
		}
	}
}

func TestCatalogMetadata(t *testing.T) {
	m, _ := newTestManager(t)

	tests := []struct {
		name        string
		description string
		port        int
	}{
		{"ssh", "Secure Shell daemon", 22},
		{"mysql", "MySQL Database Server", 3306},
		{"metasploit", "Metasploit Framework RPC", 55553},
		{"docker", "Docker Container Runtime", 0},
	}

	for _, tt := range tests {
		st, err := m.Status(tt.name)
		if err != nil {
			t.Fatalf("Status(%s): %v", tt.name, err)
		}
		if st.Description != tt.description {
			t.Errorf("%s description = %q, want %q", tt.name, st.Description, tt.description)
		}
		if st.Port != tt.port {
			t.Errorf("%s port = %d, want %d", tt.name, st.Port, tt.port)
		}
	}
}

func TestRestartCounter(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// Boot-seeded ssh has not been restarted yet
	st, _ := m.Status("ssh")
	if st.Restarts != 0 {
		t.Errorf("ssh restarts = %d after seeding, want 0", st.Restarts)
	}

	m.Start(ctx, "mysql")
	st, _ = m.Status("mysql")
	if st.Restarts != 1 {
		t.Errorf("restarts = %d after first start, want 1", st.Restarts)
	}

	m.Restart(ctx, "mysql")
	st, _ = m.Status("mysql")
	if st.Restarts != 2 {
		t.Errorf("restarts = %d after restart, want 2", st.Restarts)
	}

	m.Stop(ctx, "mysql")
	st, _ = m.Status("mysql")
	if st.Restarts != 2 {
		t.Errorf("restarts = %d after stop, want 2 (stop must not count)", st.Restarts)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	m, procs := newTestManager(t)
	ctx := context.Background()

	if err := m.Start(ctx, "mysql"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	st, _ := m.Status("mysql")
	if st.State != StateRunning || st.PID == 0 {
		t.Fatalf("after Start: %+v", st)
	}
	if procs.Get(st.PID) == nil {
		t.Error("started service has no process entry")
	}

	// Starting a running service fails
	if err := m.Start(ctx, "mysql"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start: err = %v, want ErrAlreadyRunning", err)
	}

	pid := st.PID
	if err := m.Stop(ctx, "mysql"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	st, _ = m.Status("mysql")
	if st.State != StateStopped || st.PID != 0 {
		t.Errorf("after Stop: %+v", st)
	}
	if procs.Get(pid) != nil {
		t.Error("process entry still live after Stop")
	}

	if err := m.Stop(ctx, "mysql"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop: err = %v, want ErrNotRunning", err)
	}
}

func TestRestartFromStoppedSucceeds(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	st, _ := m.Status("redis")
	if st.State != StateStopped {
		t.Fatalf("precondition: redis is %s", st.State)
	}

	if err := m.Restart(ctx, "redis"); err != nil {
		t.Fatalf("Restart from stopped failed: %v", err)
	}
	st, _ = m.Status("redis")
	if st.State != StateRunning || st.PID == 0 {
		t.Errorf("after Restart: %+v", st)
	}
}

func TestRestartReplacesProcess(t *testing.T) {
	m, procs := newTestManager(t)
	ctx := context.Background()

	if err := m.Start(ctx, "nginx"); err != nil {
		t.Fatal(err)
	}
	before, _ := m.Status("nginx")

	if err := m.Restart(ctx, "nginx"); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	after, _ := m.Status("nginx")

	if after.PID == before.PID {
		t.Error("restart kept the old pid")
	}
	if procs.Get(before.PID) != nil {
		t.Error("old process entry survived the restart")
	}
	if procs.Get(after.PID) == nil {
		t.Error("new process entry missing")
	}
}

func TestEnableDisable(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Enable("docker"); err != nil {
		t.Fatal(err)
	}
	st, _ := m.Status("docker")
	if !st.AutoStart {
		t.Error("docker not enabled")
	}

	if err := m.Disable("docker"); err != nil {
		t.Fatal(err)
	}
	st, _ = m.Status("docker")
	if st.AutoStart {
		t.Error("docker still enabled")
	}
}

func TestUnknownService(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.Start(ctx, "quake"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Start unknown: err = %v, want ErrNotFound", err)
	}
	if _, err := m.Status("quake"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status unknown: err = %v, want ErrNotFound", err)
	}
	if _, err := m.Logs("quake", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Logs unknown: err = %v, want ErrNotFound", err)
	}
}

func TestLogsRecordTransitions(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	m.Start(ctx, "apache2")
	m.Stop(ctx, "apache2")

	lines, err := m.Logs("apache2", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "started") {
		t.Errorf("first line %q does not mention start", lines[0])
	}
	if !strings.Contains(lines[1], "stopped") {
		t.Errorf("second line %q does not mention stop", lines[1])
	}
}

func TestLogsReturnsMostRecentLimit(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// Three transitions produce three log lines
	m.Start(ctx, "redis")
	m.Stop(ctx, "redis")
	m.Start(ctx, "redis")

	lines, err := m.Logs("redis", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "stopped") || !strings.Contains(lines[1], "started") {
		t.Errorf("limit did not keep the newest lines: %v", lines)
	}

	// Non-positive limit falls back to the default window
	all, err := m.Logs("redis", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("default limit returned %d lines, want 3", len(all))
	}
}

func TestLogRingDropsOldest(t *testing.T) {
	r := newLogRing(3)
	for _, s := range []string{"one", "two", "three", "four"} {
		r.append(s)
	}
	lines := r.lines()
	if len(lines) != 3 {
		t.Fatalf("ring holds %d, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "two") || !strings.Contains(lines[2], "four") {
		t.Errorf("ring content wrong: %v", lines)
	}
}

func TestStartAutoStart(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// ssh is already running, so a fresh pass starts nothing
	if started := m.StartAutoStart(ctx); len(started) != 0 {
		t.Errorf("StartAutoStart started %v, want none", started)
	}

	m.Enable("mysql")
	started := m.StartAutoStart(ctx)
	if len(started) != 1 || started[0] != "mysql" {
		t.Fatalf("StartAutoStart = %v, want [mysql]", started)
	}
	st, _ := m.Status("mysql")
	if st.State != StateRunning {
		t.Error("mysql not running after autostart")
	}
}

func TestStopAll(t *testing.T) {
	m, procs := newTestManager(t)
	ctx := context.Background()

	m.Start(ctx, "mysql")
	m.Start(ctx, "redis")

	m.StopAll(ctx)

	for _, st := range m.List() {
		if st.State != StateStopped {
			t.Errorf("%s still %s after StopAll", st.Name, st.State)
		}
	}
	if procs.Count() != 0 {
		t.Errorf("%d processes left after StopAll", procs.Count())
	}
}
