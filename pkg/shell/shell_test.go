package shell

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/mukuvi/mukuvios/pkg/identity"
	"github.com/mukuvi/mukuvios/pkg/kernel"
	"github.com/mukuvi/mukuvios/pkg/process"
	"github.com/mukuvi/mukuvios/pkg/shared"
)

func newTestShell(t *testing.T) (*Shell, *kernel.Kernel, *identity.Session) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}

	k, err := kernel.BootAt(context.Background(), db, t.TempDir())
	if err != nil {
		t.Fatalf("boot failed: %v", err)
	}
	t.Cleanup(func() { k.Shutdown(context.Background()) })

	if err := k.Identity.CreateUser("alice", "secret42"); err != nil {
		t.Fatal(err)
	}
	session, err := k.Login("alice", "secret42")
	if err != nil {
		t.Fatal(err)
	}

	return New(k), k, session
}

func run(t *testing.T, s *Shell, sessionID, line string) shared.CommandResult {
	t.Helper()
	return s.Execute(context.Background(), sessionID, line)
}

func TestUnknownCommand(t *testing.T) {
	s, _, session := newTestShell(t)

	res := run(t, s, session.ID, "frobnicate now")
	if res.Err != "frobnicate: command not found" {
		t.Errorf("Err = %q", res.Err)
	}
}

func TestUnknownSessionRejectedWithoutMutation(t *testing.T) {
	s, k, _ := newTestShell(t)

	before := k.Processes.Count()
	res := run(t, s, "bogus-session", "systemctl start mysql")
	if res.Err == "" {
		t.Fatal("expected an error for unknown session")
	}
	if k.Processes.Count() != before {
		t.Error("command with unknown session mutated the process registry")
	}
	st, _ := k.Services.Status("mysql")
	if st.State != "stopped" {
		t.Error("mysql started despite invalid session")
	}
}

func TestEmptyLineIsNoop(t *testing.T) {
	s, _, session := newTestShell(t)

	res := run(t, s, session.ID, "   ")
	if res.Err != "" || res.Output != "" {
		t.Errorf("empty line produced %+v", res)
	}
}

func TestEchoAndWhoami(t *testing.T) {
	s, _, session := newTestShell(t)

	if res := run(t, s, session.ID, "echo hello   world"); res.Output != "hello world" {
		t.Errorf("echo = %q", res.Output)
	}
	if res := run(t, s, session.ID, "whoami"); res.Output != "alice" {
		t.Errorf("whoami = %q", res.Output)
	}
}

func TestFilesystemCommandFlow(t *testing.T) {
	s, _, session := newTestShell(t)

	if res := run(t, s, session.ID, "mkdir projects"); res.Err != "" {
		t.Fatalf("mkdir: %s", res.Err)
	}
	// mkdir is idempotent
	if res := run(t, s, session.ID, "mkdir projects"); res.Err != "" {
		t.Fatalf("second mkdir: %s", res.Err)
	}

	res := run(t, s, session.ID, "ls")
	if !strings.Contains(res.Output, "projects/") {
		t.Errorf("ls output %q does not show projects/", res.Output)
	}

	res = run(t, s, session.ID, "cd projects")
	if res.Err != "" {
		t.Fatalf("cd: %s", res.Err)
	}
	if res.CurrentDir != "/home/alice/projects" {
		t.Errorf("cd CurrentDir = %q", res.CurrentDir)
	}

	if res := run(t, s, session.ID, "pwd"); res.Output != "/home/alice/projects" {
		t.Errorf("pwd = %q", res.Output)
	}

	if res := run(t, s, session.ID, "write notes.txt remember the milk"); res.Err != "" {
		t.Fatalf("write: %s", res.Err)
	}
	if res := run(t, s, session.ID, "cat notes.txt"); res.Output != "remember the milk\n" {
		t.Errorf("cat = %q", res.Output)
	}

	if res := run(t, s, session.ID, "touch empty.txt"); res.Err != "" {
		t.Fatalf("touch: %s", res.Err)
	}
	if res := run(t, s, session.ID, "rm empty.txt"); res.Err != "" {
		t.Fatalf("rm: %s", res.Err)
	}
	if res := run(t, s, session.ID, "cat empty.txt"); res.Err == "" {
		t.Error("cat of removed file succeeded")
	}
}

func TestWriteCreatesNestedDirectories(t *testing.T) {
	s, _, session := newTestShell(t)

	if res := run(t, s, session.ID, "write reports/2026/august.txt quarterly numbers"); res.Err != "" {
		t.Fatalf("write: %s", res.Err)
	}
	if res := run(t, s, session.ID, "cat reports/2026/august.txt"); res.Output != "quarterly numbers\n" {
		t.Errorf("cat = %q", res.Output)
	}
	if res := run(t, s, session.ID, "cd reports/2026"); res.Err != "" {
		t.Errorf("intermediate directory missing: %s", res.Err)
	}
}

func TestCdFailuresDoNotMoveSession(t *testing.T) {
	s, k, session := newTestShell(t)

	res := run(t, s, session.ID, "cd /does-not-exist")
	if res.Err == "" {
		t.Fatal("cd to missing directory succeeded")
	}
	if res.CurrentDir != "" {
		t.Errorf("failed cd set CurrentDir = %q", res.CurrentDir)
	}

	got, _ := k.Identity.GetSession(session.ID)
	if got.CurrentDir != "/home/alice" {
		t.Errorf("session moved to %q on failed cd", got.CurrentDir)
	}
}

func TestSessionDirectoryIsolation(t *testing.T) {
	s, k, s1 := newTestShell(t)

	s2, err := k.Login("alice", "secret42")
	if err != nil {
		t.Fatal(err)
	}

	if res := run(t, s, s1.ID, "cd /tmp"); res.Err != "" {
		t.Fatalf("cd: %s", res.Err)
	}

	if res := run(t, s, s1.ID, "pwd"); res.Output != "/tmp" {
		t.Errorf("s1 pwd = %q", res.Output)
	}
	if res := run(t, s, s2.ID, "pwd"); res.Output != "/home/alice" {
		t.Errorf("s2 pwd = %q, must not follow s1", res.Output)
	}
}

func TestMissingArgumentsShowUsage(t *testing.T) {
	s, _, session := newTestShell(t)

	tests := []struct {
		line string
		want string
	}{
		{"cd", "usage: cd <path>"},
		{"mkdir", "usage: mkdir <path>"},
		{"cat", "usage: cat <file>"},
		{"kill", "usage: kill <pid>"},
		{"write onlyfile", "usage: write <file> <text...>"},
	}

	for _, tt := range tests {
		if res := run(t, s, session.ID, tt.line); res.Err != tt.want {
			t.Errorf("%q: Err = %q, want %q", tt.line, res.Err, tt.want)
		}
	}
}

func TestPsAndKill(t *testing.T) {
	s, k, session := newTestShell(t)

	p, err := k.Processes.Spawn("toploop", "/usr/bin/toploop", nil, process.SpawnOptions{Owner: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	res := run(t, s, session.ID, "ps")
	if !strings.Contains(res.Output, "/usr/bin/toploop") {
		t.Errorf("ps output missing command: %q", res.Output)
	}
	if !strings.Contains(res.Output, "running") {
		t.Errorf("ps output missing status: %q", res.Output)
	}

	if res := run(t, s, session.ID, "kill "+strconv.Itoa(p.PID)); res.Err != "" {
		t.Fatalf("kill: %s", res.Err)
	}
	if k.Processes.Get(p.PID) != nil {
		t.Error("process alive after kill")
	}

	// Killing it again reports no such process
	if res := run(t, s, session.ID, "kill "+strconv.Itoa(p.PID)); res.Err == "" {
		t.Error("second kill did not fail")
	}
	if res := run(t, s, session.ID, "kill abc"); !strings.Contains(res.Err, "invalid pid") {
		t.Errorf("kill abc: Err = %q", res.Err)
	}
}

func TestSystemctlLifecycle(t *testing.T) {
	s, k, session := newTestShell(t)

	if res := run(t, s, session.ID, "systemctl start mysql"); res.Err != "" {
		t.Fatalf("start: %s", res.Err)
	}

	res := run(t, s, session.ID, "systemctl status mysql")
	if !strings.Contains(res.Output, "running") {
		t.Errorf("status after start: %q", res.Output)
	}
	if !strings.Contains(res.Output, "MySQL Database Server") || !strings.Contains(res.Output, "3306") {
		t.Errorf("status missing description or port: %q", res.Output)
	}
	if !strings.Contains(res.Output, "Restarts: 1") {
		t.Errorf("status missing restart counter: %q", res.Output)
	}
	st, _ := k.Services.Status("mysql")
	if st.PID == 0 {
		t.Error("no pid after systemctl start")
	}

	if res := run(t, s, session.ID, "systemctl stop mysql"); res.Err != "" {
		t.Fatalf("stop: %s", res.Err)
	}
	res = run(t, s, session.ID, "systemctl status mysql")
	if !strings.Contains(res.Output, "stopped") {
		t.Errorf("status after stop: %q", res.Output)
	}

	// restart from stopped works
	if res := run(t, s, session.ID, "systemctl restart mysql"); res.Err != "" {
		t.Fatalf("restart: %s", res.Err)
	}

	res = run(t, s, session.ID, "systemctl logs mysql")
	if !strings.Contains(res.Output, "started") {
		t.Errorf("logs: %q", res.Output)
	}

	if res := run(t, s, session.ID, "systemctl start nosuchsvc"); res.Err == "" {
		t.Error("start of unknown service succeeded")
	}
}

func TestHistory(t *testing.T) {
	s, _, session := newTestShell(t)

	run(t, s, session.ID, "echo one")
	run(t, s, session.ID, "pwd")

	res := run(t, s, session.ID, "history")
	if !strings.Contains(res.Output, "echo one") || !strings.Contains(res.Output, "pwd") {
		t.Errorf("history = %q", res.Output)
	}
}

func TestExitClosesSession(t *testing.T) {
	s, k, session := newTestShell(t)

	res := run(t, s, session.ID, "exit")
	if !res.Exit {
		t.Error("exit did not set Exit")
	}
	if res.Shutdown {
		t.Error("exit must not request shutdown")
	}
	if _, err := k.Identity.GetSession(session.ID); err == nil {
		t.Error("session alive after exit")
	}
}

func TestShutdownCommand(t *testing.T) {
	s, _, session := newTestShell(t)

	res := run(t, s, session.ID, "shutdown")
	if !res.Shutdown || !res.Exit {
		t.Errorf("shutdown result = %+v", res)
	}
}

func TestPanickingCommandIsRecovered(t *testing.T) {
	s, _, session := newTestShell(t)

	s.Register("boom", "boom", "panic on purpose", func(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
		panic("kaboom")
	})

	res := run(t, s, session.ID, "boom")
	if res.Err != "boom: internal error" {
		t.Errorf("Err = %q", res.Err)
	}

	// The shell still works afterwards
	if res := run(t, s, session.ID, "echo alive"); res.Output != "alive" {
		t.Errorf("shell broken after panic: %+v", res)
	}
}

func TestHelpListsCommands(t *testing.T) {
	s, _, session := newTestShell(t)

	res := run(t, s, session.ID, "help")
	for _, name := range []string{"ls", "cd", "systemctl", "shutdown"} {
		if !strings.Contains(res.Output, name) {
			t.Errorf("help missing %s", name)
		}
	}
}

