package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/skein-dev/skein/internal/tools"
)

const (
	defaultShellTimeout = 30 * time.Second
	shellKillGrace      = time.Second
	maxShellOutputBytes = 64 * 1024
)

// Shell runs a command line via the system shell. The process gets an
// interrupt first; if it is still alive after the grace period it is
// killed. An approval edit instruction, when present, replaces the
// command.
type Shell struct {
	workdir string
}

func NewShell(workdir string) *Shell { return &Shell{workdir: workdir} }

func (t *Shell) Name() string { return "shell" }

func (t *Shell) Description() string {
	return "Runs a shell command in the workspace and returns its combined output."
}

func (t *Shell) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Command line to run"},
			"timeout_ms": {"type": "integer", "minimum": 1, "description": "Execution timeout in milliseconds"}
		},
		"required": ["command"],
		"additionalProperties": false
	}`)
}

func (t *Shell) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	var in struct {
		Command   string `json:"command"`
		TimeoutMs int64  `json:"timeout_ms"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, &tools.InvalidInputError{Cause: err}
	}
	if in.Command == "" {
		return nil, &tools.InvalidInputError{Cause: errors.New("command is required")}
	}

	if edited, ok := tools.EditInstructionFromContext(ctx); ok {
		in.Command = edited
	}

	timeout := defaultShellTimeout
	if in.TimeoutMs > 0 {
		timeout = time.Duration(in.TimeoutMs) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", in.Command)
	cmd.Dir = t.workdir
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = shellKillGrace

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	text := output.String()
	if len(text) > maxShellOutputBytes {
		text = text[:maxShellOutputBytes] + "\n[truncated]"
	}

	if runCtx.Err() != nil {
		return nil, fmt.Errorf("command timed out after %s: %w", timeout, runCtx.Err())
	}
	if err != nil {
		return &tools.Result{
			Content: fmt.Sprintf("command failed: %v\n%s", err, text),
			IsError: true,
		}, nil
	}
	return &tools.Result{Content: text}, nil
}
