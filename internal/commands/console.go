package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"classchat/internal/models"
	"classchat/internal/view"
)

// Chat is the set of intents the console drives, implemented by
// *session.Session.
type Chat interface {
	Send(text string) error
	Keystroke()
	React(ts models.Timestamp, symbol string) error
	Pin(ts models.Timestamp) error
	Unpin() error
	SetReply(ts models.Timestamp) error
	CancelReply()
	View() view.View
}

// Console reads lines from in. A line starting with "/" is a command,
// anything else is sent as a message.
type Console struct {
	chat     Chat
	renderer *Renderer
	out      io.Writer
	logger   *slog.Logger
}

func NewConsole(chat Chat, renderer *Renderer, out io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{chat: chat, renderer: renderer, out: out, logger: logger}
}

const help = `/reply <ts>          reply to a message
/cancel              drop the reply target
/react <ts> <emoji>  react to a message
/pin <ts>            pin a message
/unpin               clear the pinned message
/who                 show the room
/quit                leave`

var errQuit = errors.New("quit")

// Run returns nil on /quit, at end of input, or when ctx is cancelled.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if err := c.Exec(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				c.logger.Debug("Command failed", "line", line, "error", err)
				fmt.Fprintf(c.out, "! %v\n", err)
			}
		}
	}
}

// Exec handles one input line.
func (c *Console) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		c.chat.Keystroke()
		return c.chat.Send(line)
	}

	fields := strings.Fields(line)
	args := fields[1:]
	switch fields[0] {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprintln(c.out, help)
		return nil
	case "/who":
		c.renderer.Full(c.chat.View())
		return nil
	case "/cancel":
		c.chat.CancelReply()
		return nil
	case "/unpin":
		return c.chat.Unpin()
	case "/reply":
		if len(args) != 1 {
			return errors.New("usage: /reply <ts>")
		}
		return c.chat.SetReply(models.Timestamp(args[0]))
	case "/pin":
		if len(args) != 1 {
			return errors.New("usage: /pin <ts>")
		}
		return c.chat.Pin(models.Timestamp(args[0]))
	case "/react":
		if len(args) != 2 {
			return errors.New("usage: /react <ts> <emoji>")
		}
		return c.chat.React(models.Timestamp(args[0]), args[1])
	default:
		return fmt.Errorf("unknown command %s, try /help", fields[0])
	}
}
