package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/hupe1980/astra/tool"
)

type shellArgs struct {
	Command string `json:"command" jsonschema:"description=Command line to execute"`
}

// Shell runs a command through bash -lc, or PowerShell on Windows.
func Shell() tool.Tool {
	return tool.NewTyped(ShellName, "Execute a shell command and return output.", func(ctx context.Context, in shellArgs) (any, error) {
		return runShell(ctx, runtime.GOOS, in.Command), nil
	})
}

// shellCommand maps a command line onto the interpreter invocation for goos.
// A non-empty refusal means the command cannot run on that platform.
func shellCommand(goos, cmd string) (argv []string, refusal string) {
	cmd = strings.TrimSpace(cmd)
	if goos == "windows" {
		if strings.HasPrefix(cmd, ". ") {
			return nil, "Shell error: POSIX '. <file>' (source) is not supported on Windows PowerShell."
		}
		if strings.HasPrefix(cmd, "./") {
			cmd = `.\` + cmd[2:]
		}
		return []string{"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-Command", cmd}, ""
	}
	return []string{"bash", "-lc", cmd}, ""
}

func runShell(ctx context.Context, goos, command string) string {
	argv, refusal := shellCommand(goos, command)
	if refusal != "" {
		return refusal
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" && code == -1 {
			msg = err.Error()
		}
		return fmt.Sprintf("Shell error (%d): %s", code, msg)
	}

	if stdout.Len() > 0 {
		return strings.TrimSpace(stdout.String())
	}
	return strings.TrimSpace(stderr.String())
}
