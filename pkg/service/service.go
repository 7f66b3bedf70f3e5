package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/logger"
	"github.com/mukuvi/mukuvios/pkg/process"
)

// Errors returned by service operations
var (
	ErrNotFound       = errors.New("unknown service")
	ErrAlreadyRunning = errors.New("service already running")
	ErrNotRunning     = errors.New("service not running")
)

// State of a managed service
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Status is a snapshot of one service.
type Status struct {
	Name        string
	Description string
	State       State
	AutoStart   bool
	PID         int
	Port        int
	Restarts    int
	StartedAt   time.Time
}

// service is the internal record. Each service has its own mutex so that
// operations on different services never serialize against each other.
type service struct {
	mu          sync.Mutex
	name        string
	description string
	state       State
	autoStart   bool
	pid         int
	port        int
	restarts    int
	startedAt   time.Time
	logs        *logRing
}

// Manager owns the static service catalog and drives state transitions.
// Starting a service registers a process, stopping it terminates that
// process again.
type Manager struct {
	mu         sync.RWMutex
	services   map[string]*service
	processes  *process.Registry
	startDelay time.Duration
	stopDelay  time.Duration
}

// catalogEntry seeds the static catalog.
type catalogEntry struct {
	name        string
	description string
	port        int
	running     bool
	autoStart   bool
}

// The simulated machine ships with a fixed set of services. Only ssh is
// up and enabled out of the box. Port 0 means the service has none.
var defaultCatalog = []catalogEntry{
	{"ssh", "Secure Shell daemon", 22, true, true},
	{"apache2", "Apache HTTP Server", 80, false, false},
	{"mysql", "MySQL Database Server", 3306, false, false},
	{"postgresql", "PostgreSQL Database Server", 5432, false, false},
	{"redis", "Redis In-Memory Data Store", 6379, false, false},
	{"nginx", "Nginx Web Server", 80, false, false},
	{"docker", "Docker Container Runtime", 0, false, false},
	{"metasploit", "Metasploit Framework RPC", 55553, false, false},
}

// NewManager creates the service manager over the given process registry.
// Services seeded as running get their process entry immediately.
func NewManager(processes *process.Registry) (*Manager, error) {
	maxLogs := configuration.GetInt("Services", "max_log_entries", 200)

	m := &Manager{
		services:   make(map[string]*service),
		processes:  processes,
		startDelay: configuration.GetDuration("Services", "start_delay", 0),
		stopDelay:  configuration.GetDuration("Services", "stop_delay", 0),
	}

	for _, entry := range defaultCatalog {
		svc := &service{
			name:        entry.name,
			description: entry.description,
			port:        entry.port,
			state:       StateStopped,
			autoStart:   entry.autoStart,
			logs:        newLogRing(maxLogs),
		}
		if entry.running {
			p, err := spawnDaemon(processes, entry.name)
			if err != nil {
				return nil, fmt.Errorf("seeding service %s: %w", entry.name, err)
			}
			svc.state = StateRunning
			svc.pid = p.PID
			svc.startedAt = p.StartedAt
			svc.logs.append("service started (boot)")
		}
		m.services[entry.name] = svc
	}

	return m, nil
}

// spawnDaemon registers the daemon process backing a running service.
func spawnDaemon(processes *process.Registry, name string) (*process.Process, error) {
	return processes.Spawn(name+"d", "/usr/sbin/"+name+"d", nil, process.SpawnOptions{Owner: "root"})
}

func (m *Manager) get(name string) (*service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	svc, ok := m.services[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return svc, nil
}

// sleep waits for the simulated transition latency, honoring cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Start brings a service up. Starting a running service fails with
// ErrAlreadyRunning.
func (m *Manager) Start(ctx context.Context, name string) error {
	svc, err := m.get(name)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.state == StateRunning {
		return fmt.Errorf("%s: %w", name, ErrAlreadyRunning)
	}

	if err := sleep(ctx, m.startDelay); err != nil {
		return err
	}

	p, err := spawnDaemon(m.processes, name)
	if err != nil {
		svc.logs.append("start failed: " + err.Error())
		return fmt.Errorf("starting %s: %w", name, err)
	}

	svc.state = StateRunning
	svc.pid = p.PID
	svc.startedAt = p.StartedAt
	svc.restarts++
	svc.logs.append("service started")

	logger.Info(logger.AreaService, "service %s started (pid %d)", name, p.PID)
	return nil
}

// Stop brings a service down. Stopping a stopped service fails with
// ErrNotRunning.
func (m *Manager) Stop(ctx context.Context, name string) error {
	svc, err := m.get(name)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.state != StateRunning {
		return fmt.Errorf("%s: %w", name, ErrNotRunning)
	}

	if err := sleep(ctx, m.stopDelay); err != nil {
		return err
	}

	m.processes.Terminate(svc.pid)
	svc.state = StateStopped
	svc.pid = 0
	svc.startedAt = time.Time{}
	svc.logs.append("service stopped")

	logger.Info(logger.AreaService, "service %s stopped", name)
	return nil
}

// Restart stops a running service and starts it again. Restarting a
// stopped service simply starts it.
func (m *Manager) Restart(ctx context.Context, name string) error {
	svc, err := m.get(name)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.state == StateRunning {
		if err := sleep(ctx, m.stopDelay); err != nil {
			return err
		}
		m.processes.Terminate(svc.pid)
		svc.state = StateStopped
		svc.pid = 0
		svc.logs.append("service stopped (restart)")
	}

	if err := sleep(ctx, m.startDelay); err != nil {
		return err
	}

	p, err := spawnDaemon(m.processes, name)
	if err != nil {
		svc.logs.append("restart failed: " + err.Error())
		return fmt.Errorf("restarting %s: %w", name, err)
	}

	svc.state = StateRunning
	svc.pid = p.PID
	svc.startedAt = p.StartedAt
	svc.restarts++
	svc.logs.append("service restarted")

	logger.Info(logger.AreaService, "service %s restarted (pid %d)", name, p.PID)
	return nil
}

// Enable marks a service for start at boot.
func (m *Manager) Enable(name string) error {
	svc, err := m.get(name)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.autoStart = true
	svc.logs.append("service enabled")
	return nil
}

// Disable removes a service from the boot start set.
func (m *Manager) Disable(name string) error {
	svc, err := m.get(name)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.autoStart = false
	svc.logs.append("service disabled")
	return nil
}

// Status returns a snapshot of one service.
func (m *Manager) Status(name string) (Status, error) {
	svc, err := m.get(name)
	if err != nil {
		return Status{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	return Status{
		Name:        svc.name,
		Description: svc.description,
		State:       svc.state,
		AutoStart:   svc.autoStart,
		PID:         svc.pid,
		Port:        svc.port,
		Restarts:    svc.restarts,
		StartedAt:   svc.startedAt,
	}, nil
}

// List returns snapshots of all services ordered by name.
func (m *Manager) List() []Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	result := make([]Status, 0, len(names))
	for _, name := range names {
		if st, err := m.Status(name); err == nil {
			result = append(result, st)
		}
	}
	return result
}

// defaultLogLines is how many log lines Logs returns when the caller
// does not ask for a specific count.
const defaultLogLines = 50

// Logs returns the most recent limit log lines of a service, oldest
// first. A non-positive limit means the default of 50.
func (m *Manager) Logs(name string, limit int) ([]string, error) {
	svc, err := m.get(name)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLogLines
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.logs.lastN(limit), nil
}

// StartAutoStart starts every enabled service that is not yet running and
// returns the names of the services it brought up.
func (m *Manager) StartAutoStart(ctx context.Context) []string {
	started := make([]string, 0)
	for _, st := range m.List() {
		if !st.AutoStart || st.State == StateRunning {
			continue
		}
		if err := m.Start(ctx, st.Name); err != nil {
			logger.Warn(logger.AreaService, "autostart of %s failed: %v", st.Name, err)
			continue
		}
		started = append(started, st.Name)
	}
	return started
}

// StopAll stops every running service. Used during shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	for _, st := range m.List() {
		if st.State != StateRunning {
			continue
		}
		if err := m.Stop(ctx, st.Name); err != nil {
			logger.Warn(logger.AreaService, "stopping %s during shutdown failed: %v", st.Name, err)
		}
	}
}
