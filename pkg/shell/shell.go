package shell

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mukuvi/mukuvios/pkg/identity"
	"github.com/mukuvi/mukuvios/pkg/kernel"
	"github.com/mukuvi/mukuvios/pkg/logger"
	"github.com/mukuvi/mukuvios/pkg/shared"
)

// Handler executes one command. args excludes the command name. Failures
// are reported through Result.Err, a handler never returns a Go error to
// the dispatch loop.
type Handler func(ctx context.Context, args []string, session *identity.Session) shared.CommandResult

// command couples a handler with its help line.
type command struct {
	handler Handler
	usage   string
	help    string
}

// Shell dispatches command lines against the kernel. The command table is
// open: Register can add commands after construction.
type Shell struct {
	kernel   *kernel.Kernel
	commands map[string]*command
}

// New creates a shell with the built-in command set.
func New(k *kernel.Kernel) *Shell {
	s := &Shell{
		kernel:   k,
		commands: make(map[string]*command),
	}
	s.registerCoreCommands()
	s.registerFilesystemCommands()
	s.registerSystemCommands()
	return s
}

// Register adds or replaces a command.
func (s *Shell) Register(name, usage, help string, handler Handler) {
	s.commands[name] = &command{handler: handler, usage: usage, help: help}
}

// Execute runs one command line for a session. Unknown session ids fail
// before anything is looked up or mutated.
func (s *Shell) Execute(ctx context.Context, sessionID, line string) shared.CommandResult {
	session, err := s.kernel.Identity.GetSession(sessionID)
	if err != nil {
		return shared.CommandResult{Err: "invalid session"}
	}
	s.kernel.Identity.TouchSession(sessionID)

	line = strings.TrimSpace(line)
	if line == "" {
		return shared.CommandResult{}
	}
	s.kernel.Identity.AppendHistory(sessionID, line)

	tokens := strings.Fields(line)
	name := tokens[0]
	args := tokens[1:]

	cmd, ok := s.commands[name]
	if !ok {
		return shared.CommandResult{Err: fmt.Sprintf("%s: command not found", name)}
	}

	return s.run(ctx, cmd, name, args, session)
}

// run invokes the handler with panic containment. A panicking command
// reports an error to the session instead of killing the server.
func (s *Shell) run(ctx context.Context, cmd *command, name string, args []string, session *identity.Session) (result shared.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(logger.AreaShell, "command %s panicked: %v", name, r)
			result = shared.CommandResult{Err: fmt.Sprintf("%s: internal error", name)}
		}
	}()

	logger.Debug(logger.AreaShell, "session %s: %s %v", session.ID, name, args)
	return cmd.handler(ctx, args, session)
}

// usageError builds the standard missing-argument reply.
func usageError(usage string) shared.CommandResult {
	return shared.CommandResult{Err: "usage: " + usage}
}

// commandNames returns the registered command names, sorted.
func (s *Shell) commandNames() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
