package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mukuvi/mukuvios/pkg/identity"
	"github.com/mukuvi/mukuvios/pkg/shared"
)

func (s *Shell) registerSystemCommands() {
	s.Register("ps", "ps [-u user]", "list processes", s.cmdPs)
	s.Register("kill", "kill <pid>", "terminate a process", s.cmdKill)
	s.Register("systemctl", "systemctl <verb> [service]", "manage services", s.cmdSystemctl)
}

func (s *Shell) cmdPs(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	procs := s.kernel.Processes.List()
	if len(args) >= 2 && args[0] == "-u" {
		procs = s.kernel.Processes.ListByOwner(args[1])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-12s %-10s %-10s %s\n", "PID", "OWNER", "STAT", "STARTED", "COMMAND")
	for _, p := range procs {
		command := p.Command
		if len(p.Args) > 0 {
			command += " " + strings.Join(p.Args, " ")
		}
		fmt.Fprintf(&b, "%-8d %-12s %-10s %-10s %s\n", p.PID, p.Owner, p.Status, p.StartedAt.Format("15:04:05"), command)
	}
	return shared.CommandResult{Output: strings.TrimRight(b.String(), "\n")}
}

func (s *Shell) cmdKill(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	if len(args) < 1 {
		return usageError("kill <pid>")
	}

	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return shared.CommandResult{Err: fmt.Sprintf("kill: invalid pid %q", args[0])}
	}

	if !s.kernel.Processes.Terminate(pid) {
		return shared.CommandResult{Err: fmt.Sprintf("kill: no such process: %d", pid)}
	}
	return shared.CommandResult{}
}

func (s *Shell) cmdSystemctl(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	if len(args) < 1 {
		return usageError("systemctl <start|stop|restart|status|enable|disable|logs|list> [service]")
	}

	verb := args[0]
	if verb == "list" {
		return s.systemctlList()
	}

	if len(args) < 2 {
		return usageError("systemctl " + verb + " <service>")
	}
	name := args[1]

	var err error
	switch verb {
	case "start":
		err = s.kernel.Services.Start(ctx, name)
	case "stop":
		err = s.kernel.Services.Stop(ctx, name)
	case "restart":
		err = s.kernel.Services.Restart(ctx, name)
	case "enable":
		err = s.kernel.Services.Enable(name)
	case "disable":
		err = s.kernel.Services.Disable(name)
	case "status":
		return s.systemctlStatus(name)
	case "logs":
		limit := 0
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 1 {
				return shared.CommandResult{Err: fmt.Sprintf("systemctl: invalid line count %q", args[2])}
			}
			limit = n
		}
		return s.systemctlLogs(name, limit)
	default:
		return shared.CommandResult{Err: fmt.Sprintf("systemctl: unknown verb %q", verb)}
	}
	if err != nil {
		return shared.CommandResult{Err: "systemctl: " + err.Error()}
	}
	return shared.CommandResult{}
}

func (s *Shell) systemctlStatus(name string) shared.CommandResult {
	st, err := s.kernel.Services.Status(name)
	if err != nil {
		return shared.CommandResult{Err: "systemctl: " + err.Error()}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s (%s)\n", st.Name, st.Description, st.State)
	enabled := "disabled"
	if st.AutoStart {
		enabled = "enabled"
	}
	fmt.Fprintf(&b, "  Boot:     %s\n", enabled)
	if st.Port > 0 {
		fmt.Fprintf(&b, "  Port:     %d\n", st.Port)
	}
	fmt.Fprintf(&b, "  Restarts: %d\n", st.Restarts)
	if st.PID > 0 {
		fmt.Fprintf(&b, "  PID:      %d\n", st.PID)
		fmt.Fprintf(&b, "  Since:    %s", st.StartedAt.Format(time.RFC3339))
	} else {
		b.WriteString("  PID:      -")
	}
	return shared.CommandResult{Output: b.String()}
}

func (s *Shell) systemctlLogs(name string, limit int) shared.CommandResult {
	lines, err := s.kernel.Services.Logs(name, limit)
	if err != nil {
		return shared.CommandResult{Err: "systemctl: " + err.Error()}
	}
	if len(lines) == 0 {
		return shared.CommandResult{Output: "no log entries"}
	}
	return shared.CommandResult{Output: strings.Join(lines, "\n")}
}

func (s *Shell) systemctlList() shared.CommandResult {
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %-10s %-10s %-8s %-8s %s\n", "SERVICE", "STATE", "BOOT", "PORT", "PID", "DESCRIPTION")
	for _, st := range s.kernel.Services.List() {
		enabled := "disabled"
		if st.AutoStart {
			enabled = "enabled"
		}
		pid := "-"
		if st.PID > 0 {
			pid = strconv.Itoa(st.PID)
		}
		port := "-"
		if st.Port > 0 {
			port = strconv.Itoa(st.Port)
		}
		fmt.Fprintf(&b, "%-14s %-10s %-10s %-8s %-8s %s\n", st.Name, st.State, enabled, port, pid, st.Description)
	}
	return shared.CommandResult{Output: strings.TrimRight(b.String(), "\n")}
}
