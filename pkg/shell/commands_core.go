package shell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mukuvi/mukuvios/pkg/identity"
	"github.com/mukuvi/mukuvios/pkg/shared"
)

func (s *Shell) registerCoreCommands() {
	s.Register("help", "help", "list available commands", s.cmdHelp)
	s.Register("echo", "echo [text...]", "print text", s.cmdEcho)
	s.Register("whoami", "whoami", "print the current user", s.cmdWhoami)
	s.Register("uname", "uname", "print system name and version", s.cmdUname)
	s.Register("uptime", "uptime", "print time since boot", s.cmdUptime)
	s.Register("date", "date", "print the current date and time", s.cmdDate)
	s.Register("clear", "clear", "clear the screen", s.cmdClear)
	s.Register("history", "history", "print the session command history", s.cmdHistory)
	s.Register("users", "users", "list registered users", s.cmdUsers)
	s.Register("sysinfo", "sysinfo", "print system information", s.cmdSysinfo)
	s.Register("exit", "exit", "leave the session", s.cmdExit)
	s.Register("logout", "logout", "leave the session", s.cmdExit)
	s.Register("shutdown", "shutdown", "shut the system down", s.cmdShutdown)
}

func (s *Shell) cmdHelp(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range s.commandNames() {
		cmd := s.commands[name]
		fmt.Fprintf(&b, "  %-22s %s\n", cmd.usage, cmd.help)
	}
	return shared.CommandResult{Output: strings.TrimRight(b.String(), "\n")}
}

func (s *Shell) cmdEcho(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	return shared.CommandResult{Output: strings.Join(args, " ")}
}

func (s *Shell) cmdWhoami(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	return shared.CommandResult{Output: session.Username}
}

func (s *Shell) cmdUname(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	return shared.CommandResult{Output: fmt.Sprintf("%s %s", s.kernel.Config.OSName, s.kernel.Config.Version)}
}

func (s *Shell) cmdUptime(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	return shared.CommandResult{Output: fmt.Sprintf("up %s", s.kernel.Uptime().Truncate(time.Second))}
}

func (s *Shell) cmdDate(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	return shared.CommandResult{Output: time.Now().Format("Mon Jan 2 15:04:05 MST 2006")}
}

func (s *Shell) cmdClear(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	// The front-end interprets the form feed as a clear-screen request
	return shared.CommandResult{Output: "\x0c"}
}

func (s *Shell) cmdHistory(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	current, err := s.kernel.Identity.GetSession(session.ID)
	if err != nil {
		return shared.CommandResult{Err: "invalid session"}
	}
	var b strings.Builder
	for i, line := range current.History {
		fmt.Fprintf(&b, "%4d  %s\n", i+1, line)
	}
	return shared.CommandResult{Output: strings.TrimRight(b.String(), "\n")}
}

func (s *Shell) cmdUsers(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	users, err := s.kernel.Identity.ListUsers()
	if err != nil {
		return shared.CommandResult{Err: "could not list users"}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-6s %s\n", "USERNAME", "ADMIN", "CREATED")
	for _, u := range users {
		admin := "no"
		if u.IsAdmin {
			admin = "yes"
		}
		fmt.Fprintf(&b, "%-20s %-6s %s\n", u.Username, admin, u.CreatedAt.Format("2006-01-02"))
	}
	return shared.CommandResult{Output: strings.TrimRight(b.String(), "\n")}
}

func (s *Shell) cmdSysinfo(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	info := s.kernel.SystemInfo()
	var b strings.Builder
	fmt.Fprintf(&b, "OS:        %s %s\n", info.OSName, info.Version)
	fmt.Fprintf(&b, "Boot time: %s\n", info.BootTime)
	fmt.Fprintf(&b, "Uptime:    %s\n", info.Uptime)
	fmt.Fprintf(&b, "Processes: %d\n", info.ProcessCount)
	fmt.Fprintf(&b, "Users:     %d", info.UserCount)
	return shared.CommandResult{Output: b.String()}
}

func (s *Shell) cmdExit(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	s.kernel.Identity.Logout(session.ID)
	return shared.CommandResult{Output: "logout", Exit: true}
}

func (s *Shell) cmdShutdown(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	return shared.CommandResult{Output: "System is going down now.", Exit: true, Shutdown: true}
}
