package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/mukuvi/mukuvios/pkg/identity"
	"github.com/mukuvi/mukuvios/pkg/shared"
)

func (s *Shell) registerFilesystemCommands() {
	s.Register("ls", "ls [path]", "list directory contents", s.cmdLs)
	s.Register("cd", "cd <path>", "change the working directory", s.cmdCd)
	s.Register("pwd", "pwd", "print the working directory", s.cmdPwd)
	s.Register("mkdir", "mkdir <path>", "create a directory", s.cmdMkdir)
	s.Register("touch", "touch <file>", "create an empty file", s.cmdTouch)
	s.Register("cat", "cat <file>", "print file contents", s.cmdCat)
	s.Register("write", "write <file> <text...>", "write text into a file", s.cmdWrite)
	s.Register("rm", "rm [-r] <path>", "remove a file or directory", s.cmdRm)
}

func (s *Shell) cmdLs(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	entries, err := s.kernel.Filesystem.List(session.CurrentDir, target)
	if err != nil {
		return shared.CommandResult{Err: "ls: " + err.Error()}
	}

	var b strings.Builder
	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(&b, "%s/\n", e.Name)
		} else {
			fmt.Fprintf(&b, "%s\n", e.Name)
		}
	}
	return shared.CommandResult{Output: strings.TrimRight(b.String(), "\n")}
}

func (s *Shell) cmdCd(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	if len(args) < 1 {
		return usageError("cd <path>")
	}

	newDir, err := s.kernel.Filesystem.ChangeDirectory(session.CurrentDir, args[0])
	if err != nil {
		return shared.CommandResult{Err: "cd: " + err.Error()}
	}
	if err := s.kernel.Identity.SetCurrentDir(session.ID, newDir); err != nil {
		return shared.CommandResult{Err: "cd: invalid session"}
	}
	return shared.CommandResult{CurrentDir: newDir}
}

func (s *Shell) cmdPwd(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	current, err := s.kernel.Identity.GetSession(session.ID)
	if err != nil {
		return shared.CommandResult{Err: "invalid session"}
	}
	return shared.CommandResult{Output: current.CurrentDir}
}

func (s *Shell) cmdMkdir(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	if len(args) < 1 {
		return usageError("mkdir <path>")
	}

	if err := s.kernel.Filesystem.Mkdir(session.CurrentDir, args[0]); err != nil {
		return shared.CommandResult{Err: "mkdir: " + err.Error()}
	}
	return shared.CommandResult{}
}

func (s *Shell) cmdTouch(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	if len(args) < 1 {
		return usageError("touch <file>")
	}

	// Existing files are left alone
	if s.kernel.Filesystem.Exists(session.CurrentDir, args[0]) {
		return shared.CommandResult{}
	}
	if err := s.kernel.Filesystem.Write(session.CurrentDir, args[0], ""); err != nil {
		return shared.CommandResult{Err: "touch: " + err.Error()}
	}
	return shared.CommandResult{}
}

func (s *Shell) cmdCat(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	if len(args) < 1 {
		return usageError("cat <file>")
	}

	content, err := s.kernel.Filesystem.Read(session.CurrentDir, args[0])
	if err != nil {
		return shared.CommandResult{Err: "cat: " + err.Error()}
	}
	return shared.CommandResult{Output: content}
}

func (s *Shell) cmdWrite(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	if len(args) < 2 {
		return usageError("write <file> <text...>")
	}

	content := strings.Join(args[1:], " ") + "\n"
	if err := s.kernel.Filesystem.Write(session.CurrentDir, args[0], content); err != nil {
		return shared.CommandResult{Err: "write: " + err.Error()}
	}
	return shared.CommandResult{}
}

func (s *Shell) cmdRm(ctx context.Context, args []string, session *identity.Session) shared.CommandResult {
	recursive := false
	if len(args) > 0 && args[0] == "-r" {
		recursive = true
		args = args[1:]
	}
	if len(args) < 1 {
		return usageError("rm [-r] <path>")
	}

	var err error
	if recursive {
		err = s.kernel.Filesystem.RemoveAll(session.CurrentDir, args[0])
	} else {
		err = s.kernel.Filesystem.Remove(session.CurrentDir, args[0])
	}
	if err != nil {
		return shared.CommandResult{Err: "rm: " + err.Error()}
	}
	return shared.CommandResult{}
}
