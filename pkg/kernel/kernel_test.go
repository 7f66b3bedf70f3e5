package kernel

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/mukuvi/mukuvios/pkg/identity"
	"github.com/mukuvi/mukuvios/pkg/service"
)

func bootTestKernel(t *testing.T) *Kernel {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	k, err := BootAt(context.Background(), db, t.TempDir())
	if err != nil {
		t.Fatalf("boot failed: %v", err)
	}
	t.Cleanup(func() { k.Shutdown(context.Background()) })
	return k
}

func TestBootInitializesSubsystems(t *testing.T) {
	k := bootTestKernel(t)

	if k.Filesystem == nil || k.Identity == nil || k.Processes == nil || k.Services == nil {
		t.Fatal("boot left a subsystem nil")
	}
	if k.Config.OSName == "" || k.Config.Version == "" {
		t.Errorf("system config incomplete: %+v", k.Config)
	}

	// ssh autostarts, so the process registry is not empty after boot
	ssh, err := k.Services.Status("ssh")
	if err != nil {
		t.Fatal(err)
	}
	if ssh.State != service.StateRunning {
		t.Errorf("ssh is %s after boot, want running", ssh.State)
	}
	if k.Processes.Count() == 0 {
		t.Error("no processes after boot")
	}
}

func TestSystemConfigSurvivesReboot(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	first, err := loadOrCreateSystemConfig(db)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}

	second, err := loadOrCreateSystemConfig(db)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	if second.OSName != first.OSName || second.Version != first.Version {
		t.Errorf("record changed across loads: %+v vs %+v", first, second)
	}
	if second.InstalledAt.Unix() != first.InstalledAt.Unix() {
		t.Errorf("installed_at changed: %v vs %v", first.InstalledAt, second.InstalledAt)
	}
}

func TestLoginCreatesSessionAndHome(t *testing.T) {
	k := bootTestKernel(t)

	if err := k.Identity.CreateUser("alice", "secret42"); err != nil {
		t.Fatal(err)
	}

	session, err := k.Login("alice", "secret42")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.CurrentDir != "/home/alice" {
		t.Errorf("session dir = %q, want /home/alice", session.CurrentDir)
	}
	if !k.Filesystem.Exists("/", "/home/alice") {
		t.Error("home directory missing after login")
	}

	if _, err := k.Login("alice", "wrong"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("bad login: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSystemInfo(t *testing.T) {
	k := bootTestKernel(t)

	info := k.SystemInfo()
	if info.OSName != k.Config.OSName || info.Version != k.Config.Version {
		t.Errorf("SystemInfo identity fields wrong: %+v", info)
	}
	if info.ProcessCount != k.Processes.Count() {
		t.Errorf("ProcessCount = %d, registry has %d", info.ProcessCount, k.Processes.Count())
	}
	if info.UserCount < 1 {
		t.Errorf("UserCount = %d, want at least the admin user", info.UserCount)
	}
	if info.BootTime == "" || info.Uptime == "" {
		t.Errorf("missing time fields: %+v", info)
	}
}

func TestShutdownStopsEverything(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}

	k, err := BootAt(context.Background(), db, t.TempDir())
	if err != nil {
		t.Fatalf("boot failed: %v", err)
	}

	if err := k.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if k.Processes.Count() != 0 {
		t.Errorf("%d processes alive after shutdown", k.Processes.Count())
	}
	for _, st := range k.Services.List() {
		if st.State == service.StateRunning {
			t.Errorf("service %s still running after shutdown", st.Name)
		}
	}
}
