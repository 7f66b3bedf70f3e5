package process

import (
	"errors"
	"testing"
)

func newTestRegistry(max int) *Registry {
	r := NewRegistry()
	r.maxLive = max
	return r
}

func spawn(t *testing.T, r *Registry, name, owner string) *Process {
	t.Helper()
	p, err := r.Spawn(name, "/usr/bin/"+name, nil, SpawnOptions{Owner: owner})
	if err != nil {
		t.Fatalf("Spawn(%s) failed: %v", name, err)
	}
	return p
}

func TestSpawnAssignsMonotonicPIDs(t *testing.T) {
	r := newTestRegistry(10)

	p1 := spawn(t, r, "init", "root")
	p2 := spawn(t, r, "sshd", "root")
	if p2.PID <= p1.PID {
		t.Errorf("pids not monotonic: %d then %d", p1.PID, p2.PID)
	}
}

func TestSpawnRecordCarriesAttributes(t *testing.T) {
	r := newTestRegistry(10)

	parent := spawn(t, r, "bash", "alice")
	p, err := r.Spawn("grep", "/usr/bin/grep", []string{"-r", "needle", "."}, SpawnOptions{
		Owner:     "alice",
		ParentPID: parent.PID,
		Priority:  5,
		Memory:    2048,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	if p.Command != "/usr/bin/grep" {
		t.Errorf("Command = %q", p.Command)
	}
	if len(p.Args) != 3 || p.Args[0] != "-r" {
		t.Errorf("Args = %v", p.Args)
	}
	if p.Status != StatusRunning {
		t.Errorf("Status = %q, want running", p.Status)
	}
	if p.ParentPID != parent.PID {
		t.Errorf("ParentPID = %d, want %d", p.ParentPID, parent.PID)
	}
	if p.Priority != 5 || p.Memory != 2048 {
		t.Errorf("Priority = %d, Memory = %d", p.Priority, p.Memory)
	}
	if p.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
}

func TestSpawnDefaults(t *testing.T) {
	r := newTestRegistry(10)

	p, err := r.Spawn("cron", "/usr/sbin/cron", nil, SpawnOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Owner != "root" {
		t.Errorf("default Owner = %q, want root", p.Owner)
	}
	if p.Memory != defaultMemory {
		t.Errorf("default Memory = %d, want %d", p.Memory, defaultMemory)
	}
	if p.ParentPID != 0 || p.Priority != 0 {
		t.Errorf("defaults: ParentPID = %d, Priority = %d", p.ParentPID, p.Priority)
	}
}

func TestPIDsAreNeverReused(t *testing.T) {
	r := newTestRegistry(10)

	p1 := spawn(t, r, "a", "root")
	if !r.Terminate(p1.PID) {
		t.Fatal("Terminate returned false for live pid")
	}
	p2 := spawn(t, r, "b", "root")
	if p2.PID == p1.PID {
		t.Errorf("pid %d was reused after terminate", p1.PID)
	}
	if p2.PID <= p1.PID {
		t.Errorf("pid %d not greater than terminated pid %d", p2.PID, p1.PID)
	}
}

func TestSpawnRespectsCeiling(t *testing.T) {
	r := newTestRegistry(3)

	for i := 0; i < 3; i++ {
		spawn(t, r, "worker", "root")
	}

	_, err := r.Spawn("overflow", "/usr/bin/overflow", nil, SpawnOptions{Owner: "root"})
	if !errors.Is(err, ErrProcessLimit) {
		t.Fatalf("spawn at ceiling: err = %v, want ErrProcessLimit", err)
	}

	// Terminating one frees a slot
	first := r.List()[0]
	if !r.Terminate(first.PID) {
		t.Fatal("Terminate failed")
	}
	spawn(t, r, "again", "root")
}

func TestTerminateUnknownPIDReturnsFalse(t *testing.T) {
	r := newTestRegistry(10)

	if r.Terminate(9999) {
		t.Error("Terminate(9999) = true, want false")
	}
}

func TestGetAndList(t *testing.T) {
	r := newTestRegistry(10)

	p := spawn(t, r, "mysqld", "admin")
	got := r.Get(p.PID)
	if got == nil || got.Name != "mysqld" || got.Owner != "admin" {
		t.Errorf("Get(%d) = %+v", p.PID, got)
	}
	if got.Status != StatusRunning {
		t.Errorf("live process status = %q", got.Status)
	}
	if r.Get(12345) != nil {
		t.Error("Get of unknown pid returned a process")
	}

	spawn(t, r, "nginx", "admin")
	spawn(t, r, "bash", "guest")

	all := r.List()
	if len(all) != 3 {
		t.Fatalf("List returned %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].PID <= all[i-1].PID {
			t.Error("List not ordered by pid")
		}
	}

	mine := r.ListByOwner("admin")
	if len(mine) != 2 {
		t.Errorf("ListByOwner(admin) returned %d, want 2", len(mine))
	}
}

func TestSnapshotsAreIndependent(t *testing.T) {
	r := newTestRegistry(10)

	p, err := r.Spawn("tar", "/usr/bin/tar", []string{"-c", "/home"}, SpawnOptions{Owner: "root"})
	if err != nil {
		t.Fatal(err)
	}
	p.Args[0] = "mutated"

	got := r.Get(p.PID)
	if got.Args[0] != "-c" {
		t.Errorf("registry record shares args with caller copy: %v", got.Args)
	}
}

func TestTerminateAll(t *testing.T) {
	r := newTestRegistry(10)

	spawn(t, r, "a", "root")
	spawn(t, r, "b", "root")
	last := spawn(t, r, "c", "root")

	if n := r.TerminateAll(); n != 3 {
		t.Errorf("TerminateAll = %d, want 3", n)
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d after TerminateAll, want 0", r.Count())
	}

	// Monotonicity survives a full sweep
	p := spawn(t, r, "d", "root")
	if p.PID <= last.PID {
		t.Errorf("pid %d not greater than pre-sweep pid %d", p.PID, last.PID)
	}
}
