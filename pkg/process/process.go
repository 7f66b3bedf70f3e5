package process

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/logger"
)

// ErrProcessLimit is returned by Spawn when the live process ceiling is reached.
var ErrProcessLimit = errors.New("process table full")

// Status of a process. Live processes are running; a record is marked
// terminated just before it leaves the registry.
type Status string

const (
	StatusRunning    Status = "running"
	StatusTerminated Status = "terminated"
)

// Process is one entry of the process registry.
type Process struct {
	PID       int
	Name      string
	Command   string
	Args      []string
	Owner     string
	Status    Status
	ParentPID int
	Priority  int
	Memory    int
	StartedAt time.Time
	EndedAt   time.Time
}

// SpawnOptions carries the optional attributes of a new process.
type SpawnOptions struct {
	Owner     string
	ParentPID int
	Priority  int
	Memory    int
}

const defaultMemory = 1024

// Registry tracks simulated processes. PIDs are handed out strictly
// monotonically and are never reused, even after a process terminates.
type Registry struct {
	mu        sync.RWMutex
	processes map[int]*Process
	nextPID   int
	maxLive   int
}

// NewRegistry creates a process registry with the configured live ceiling.
func NewRegistry() *Registry {
	return &Registry{
		processes: make(map[int]*Process),
		nextPID:   1,
		maxLive:   configuration.GetInt("System", "max_processes", 1000),
	}
}

// Spawn registers a new process and returns it. When the number of live
// processes has reached the ceiling the spawn fails with ErrProcessLimit.
func (r *Registry) Spawn(name, command string, args []string, opts SpawnOptions) (*Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.processes) >= r.maxLive {
		return nil, fmt.Errorf("spawn %s: %w", name, ErrProcessLimit)
	}

	owner := opts.Owner
	if owner == "" {
		owner = "root"
	}
	memory := opts.Memory
	if memory <= 0 {
		memory = defaultMemory
	}

	p := &Process{
		PID:       r.nextPID,
		Name:      name,
		Command:   command,
		Args:      args,
		Owner:     owner,
		Status:    StatusRunning,
		ParentPID: opts.ParentPID,
		Priority:  opts.Priority,
		Memory:    memory,
		StartedAt: time.Now(),
	}
	r.nextPID++
	r.processes[p.PID] = p

	logger.Debug(logger.AreaProcess, "spawned pid %d (%s) for %s", p.PID, p.Name, p.Owner)
	return snapshot(p), nil
}

// snapshot copies a record so callers never share the stored struct.
func snapshot(p *Process) *Process {
	c := *p
	if p.Args != nil {
		c.Args = append([]string(nil), p.Args...)
	}
	return &c
}

// Get returns the process with the given pid, or nil when none is live.
func (r *Registry) Get(pid int) *Process {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.processes[pid]; ok {
		return snapshot(p)
	}
	return nil
}

// List returns all live processes ordered by pid.
func (r *Registry) List() []*Process {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Process, 0, len(r.processes))
	for _, p := range r.processes {
		result = append(result, snapshot(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PID < result[j].PID })
	return result
}

// ListByOwner returns the live processes belonging to a user, ordered by pid.
func (r *Registry) ListByOwner(owner string) []*Process {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Process, 0)
	for _, p := range r.processes {
		if p.Owner == owner {
			result = append(result, snapshot(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PID < result[j].PID })
	return result
}

// Count returns the number of live processes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.processes)
}

// Terminate removes a process from the registry. It returns false when no
// live process has the given pid; an unknown pid is not an error.
func (r *Registry) Terminate(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.processes[pid]
	if !ok {
		return false
	}
	p.Status = StatusTerminated
	p.EndedAt = time.Now()
	delete(r.processes, pid)
	logger.Debug(logger.AreaProcess, "terminated pid %d", pid)
	return true
}

// TerminateAll removes every live process and returns how many were terminated.
func (r *Registry) TerminateAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	n := len(r.processes)
	for _, p := range r.processes {
		p.Status = StatusTerminated
		p.EndedAt = now
	}
	r.processes = make(map[int]*Process)
	if n > 0 {
		logger.Info(logger.AreaProcess, "terminated all %d processes", n)
	}
	return n
}
