package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/skein-dev/skein/internal/orchestrator"
	"github.com/skein-dev/skein/pkg/models"
)

// eventPrinter renders the event stream on a terminal. When an approval
// request arrives it prompts on stdin and resolves the decision, which
// resumes the suspended turn.
type eventPrinter struct {
	out     io.Writer
	in      *bufio.Reader
	approve func(approvalID string, decision orchestrator.Decision, instruction string)

	// approveAll skips the prompt and approves everything.
	approveAll bool
}

func newEventPrinter(out io.Writer, in io.Reader, approveAll bool) *eventPrinter {
	return &eventPrinter{
		out:        out,
		in:         bufio.NewReader(in),
		approveAll: approveAll,
	}
}

func (p *eventPrinter) Send(ctx context.Context, event models.AgentEvent) {
	switch event.Type {
	case models.EventAssistantChunk:
		fmt.Fprint(p.out, event.Chunk.Delta)
	case models.EventStreamFinish:
		fmt.Fprintln(p.out)
	case models.EventAssistantMessage:
		fmt.Fprintln(p.out, event.Assistant.Content)
	case models.EventToolCalls:
		for _, call := range event.Calls.ToolCalls {
			fmt.Fprintf(p.out, "→ %s %s\n", call.Name, call.Arguments)
		}
	case models.EventToolResult:
		res := event.Result
		marker := "✓"
		if res.Status == models.StatusError {
			marker = "✗"
		}
		fmt.Fprintf(p.out, "%s %s (%dms)\n", marker, res.Name, res.DurationMs)
	case models.EventToolApprovalRequired:
		p.promptApproval(event)
	case models.EventSubAgentStarted:
		fmt.Fprintf(p.out, "⋯ sub-agent %s started\n", event.SubAgent.AgentName)
	case models.EventSubAgentCompleted:
		fmt.Fprintf(p.out, "⋯ sub-agent %s: %s\n", event.SubAgent.AgentName, event.SubAgent.Status)
	case models.EventNoticeLine:
		fmt.Fprintln(p.out, event.Notice.Line)
	case models.EventError:
		fmt.Fprintf(p.out, "error: %s\n", event.Error.Error)
	}
}

func (p *eventPrinter) promptApproval(event models.AgentEvent) {
	if p.approve == nil {
		return
	}
	if p.approveAll {
		p.approve(event.Calls.ApprovalID, orchestrator.DecisionApproveAll, "")
		return
	}

	for _, call := range event.Calls.ToolCalls {
		fmt.Fprintf(p.out, "tool wants to run: %s %s\n", call.Name, call.Arguments)
	}
	fmt.Fprint(p.out, "approve? [y]es / [n]o / [e]dit: ")
	line, err := p.in.ReadString('\n')
	if err != nil {
		p.approve(event.Calls.ApprovalID, orchestrator.DecisionDeny, "")
		return
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		p.approve(event.Calls.ApprovalID, orchestrator.DecisionApprove, "")
	case "e", "edit":
		fmt.Fprint(p.out, "edit instruction: ")
		instruction, _ := p.in.ReadString('\n')
		p.approve(event.Calls.ApprovalID, orchestrator.DecisionEdit, strings.TrimSpace(instruction))
	default:
		p.approve(event.Calls.ApprovalID, orchestrator.DecisionDeny, "")
	}
}
