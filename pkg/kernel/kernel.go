package kernel

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/identity"
	"github.com/mukuvi/mukuvios/pkg/logger"
	"github.com/mukuvi/mukuvios/pkg/process"
	"github.com/mukuvi/mukuvios/pkg/service"
	"github.com/mukuvi/mukuvios/pkg/shared"
	"github.com/mukuvi/mukuvios/pkg/virtualfs"
)

// Kernel owns every subsystem of the simulated machine. All registries
// are explicit values here, there are no package-level singletons below
// the configuration and logger layers.
type Kernel struct {
	Config     *SystemConfig
	Filesystem *virtualfs.VFS
	Identity   *identity.Manager
	Processes  *process.Registry
	Services   *service.Manager

	db       *sql.DB
	bootTime time.Time
}

// Boot brings the system up. Subsystem order matters: the filesystem
// first, then identity (needs the database), then the process registry,
// then services (spawn into the process registry).
func Boot(ctx context.Context) (*Kernel, error) {
	dbPath := configuration.GetString("System", "database_file", "mukuvi.db")
	db, err := InitDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("kernel boot: %w", err)
	}

	k, err := bootWithDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return k, nil
}

// bootWithDB finishes booting over an already open database. Split out so
// tests can boot against an in-memory database and a scratch sandbox.
func bootWithDB(ctx context.Context, db *sql.DB) (*Kernel, error) {
	root := configuration.GetString("FileSystem", "sandbox_root", "mukuvi-root")
	return BootAt(ctx, db, root)
}

// BootAt boots over an explicit database handle and sandbox directory.
func BootAt(ctx context.Context, db *sql.DB, sandboxRoot string) (*Kernel, error) {
	sysConfig, err := loadOrCreateSystemConfig(db)
	if err != nil {
		return nil, fmt.Errorf("kernel boot: %w", err)
	}

	vfs, err := virtualfs.NewAt(sandboxRoot)
	if err != nil {
		return nil, fmt.Errorf("kernel boot: filesystem: %w", err)
	}
	logger.Info(logger.AreaKernel, "filesystem initialized")

	ident, err := identity.NewManager(db)
	if err != nil {
		return nil, fmt.Errorf("kernel boot: identity: %w", err)
	}
	if err := ident.EnsureAdminUser(); err != nil {
		return nil, fmt.Errorf("kernel boot: identity: %w", err)
	}
	logger.Info(logger.AreaKernel, "identity store initialized")

	procs := process.NewRegistry()
	logger.Info(logger.AreaKernel, "process registry initialized")

	services, err := service.NewManager(procs)
	if err != nil {
		return nil, fmt.Errorf("kernel boot: services: %w", err)
	}
	if configuration.GetBool("Services", "start_at_boot", true) {
		started := services.StartAutoStart(ctx)
		for _, name := range started {
			logger.Info(logger.AreaKernel, "autostarted service %s", name)
		}
	}
	logger.Info(logger.AreaKernel, "service manager initialized")

	k := &Kernel{
		Config:     sysConfig,
		Filesystem: vfs,
		Identity:   ident,
		Processes:  procs,
		Services:   services,
		db:         db,
		bootTime:   time.Now(),
	}

	logger.Info(logger.AreaKernel, "%s %s booted", sysConfig.OSName, sysConfig.Version)
	return k, nil
}

// BootTime returns when the kernel came up.
func (k *Kernel) BootTime() time.Time {
	return k.bootTime
}

// Uptime returns how long the kernel has been running.
func (k *Kernel) Uptime() time.Duration {
	return time.Since(k.bootTime)
}

// SystemInfo assembles the public system information record.
func (k *Kernel) SystemInfo() shared.SystemInfo {
	userCount, err := k.Identity.CountUsers()
	if err != nil {
		logger.Warn(logger.AreaKernel, "counting users for system info: %v", err)
	}
	return shared.SystemInfo{
		OSName:       k.Config.OSName,
		Version:      k.Config.Version,
		BootTime:     k.bootTime.UTC().Format(time.RFC3339),
		Uptime:       k.Uptime().Truncate(time.Second).String(),
		ProcessCount: k.Processes.Count(),
		UserCount:    userCount,
	}
}

// Login authenticates a user and opens a session rooted at the user's
// home directory, which is created when missing.
func (k *Kernel) Login(username, password string) (*identity.Session, error) {
	if err := k.Identity.Authenticate(username, password); err != nil {
		return nil, err
	}
	home, err := k.Filesystem.EnsureHomeDirectory(username)
	if err != nil {
		return nil, fmt.Errorf("preparing home directory: %w", err)
	}
	return k.Identity.CreateSession(username, home), nil
}

// Shutdown tears the system down: all services stopped, all processes
// terminated, database closed. Safe to call once.
func (k *Kernel) Shutdown(ctx context.Context) error {
	logger.Info(logger.AreaKernel, "shutdown requested")

	k.Services.StopAll(ctx)
	if n := k.Processes.TerminateAll(); n > 0 {
		logger.Info(logger.AreaKernel, "terminated %d remaining processes", n)
	}

	if err := k.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	logger.Info(logger.AreaKernel, "shutdown complete")
	return nil
}
