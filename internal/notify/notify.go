// Package notify is the toast collaborator: short user-facing messages
// emitted by the poller, the retry orchestrator and the submission flow.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Notifier surfaces one-line messages to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Warning(msg string)
	Info(msg string)
}

// Console writes notifications to a terminal, one line each, and mirrors
// them to the structured log.
type Console struct {
	log *slog.Logger
	out io.Writer
}

var _ Notifier = (*Console)(nil)

// NewConsole creates a terminal notifier. A nil writer defaults to stdout.
func NewConsole(log *slog.Logger, out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}

	return &Console{
		log: log.With(slog.String("package", "notify")),
		out: out,
	}
}

func (c *Console) Success(msg string) { c.emit("ok", msg) }

func (c *Console) Error(msg string) { c.emit("error", msg) }

func (c *Console) Warning(msg string) { c.emit("warn", msg) }

func (c *Console) Info(msg string) { c.emit("info", msg) }

func (c *Console) emit(kind, msg string) {
	fmt.Fprintf(c.out, "[%s] %s\n", kind, msg)
	c.log.Debug("notification", slog.String("kind", kind), slog.String("message", msg))
}
