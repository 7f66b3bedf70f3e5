package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mukuvi/mukuvios/pkg/kernel"
	"github.com/mukuvi/mukuvios/pkg/logger"
	"github.com/mukuvi/mukuvios/pkg/shell"
)

// ErrShutdown is returned by Run when a command requested system shutdown.
var ErrShutdown = errors.New("shutdown requested")

const maxLoginAttempts = 3

// Console is the local interactive terminal, an alternative front door to
// the same kernel the gateway serves.
type Console struct {
	kernel *kernel.Kernel
	shell  *shell.Shell
}

// New creates a console over a booted kernel.
func New(k *kernel.Kernel, sh *shell.Shell) *Console {
	return &Console{kernel: k, shell: sh}
}

// Run prompts for credentials, then reads and executes command lines
// until the session ends. It returns ErrShutdown when the user ran the
// shutdown command.
func (c *Console) Run(ctx context.Context) error {
	fmt.Printf("%s %s\n", c.kernel.Config.OSName, c.kernel.Config.Version)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "login: ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryLimit:    100,
	})
	if err != nil {
		return fmt.Errorf("initializing terminal: %v", err)
	}
	defer rl.Close()

	session, err := c.login(rl)
	if err != nil {
		return err
	}

	fmt.Printf("Welcome, %s. Type 'help' for available commands.\n", session.Username)

	for {
		current, err := c.kernel.Identity.GetSession(session.ID)
		if err != nil {
			// exit/logout removed the session
			return nil
		}
		rl.SetPrompt(fmt.Sprintf("%s@mukuvi:%s$ ", current.Username, current.CurrentDir))

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				// Ctrl+C drops the current line, not the session
				continue
			}
			if err == io.EOF {
				fmt.Println()
				c.kernel.Identity.Logout(session.ID)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		result := c.shell.Execute(ctx, session.ID, line)
		if result.Output != "" {
			fmt.Println(result.Output)
		}
		if result.Err != "" {
			fmt.Println(result.Err)
		}
		if result.Shutdown {
			return ErrShutdown
		}
		if result.Exit {
			return nil
		}
	}
}

// login asks for credentials until they check out or the attempts run out.
func (c *Console) login(rl *readline.Instance) (loginSession, error) {
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		rl.SetPrompt("login: ")
		username, err := rl.Readline()
		if err != nil {
			return loginSession{}, err
		}
		username = strings.TrimSpace(username)

		password, err := rl.ReadPassword("password: ")
		if err != nil {
			return loginSession{}, err
		}

		session, err := c.kernel.Login(username, string(password))
		if err == nil {
			return loginSession{ID: session.ID, Username: session.Username}, nil
		}

		logger.Debug(logger.AreaAuth, "console login attempt %d failed", attempt)
		fmt.Println("Login incorrect")
	}
	return loginSession{}, errors.New("too many failed login attempts")
}

// loginSession is the small slice of session state the console loop needs.
type loginSession struct {
	ID       string
	Username string
}
