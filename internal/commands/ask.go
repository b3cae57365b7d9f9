package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"classchat/internal/assistant"
	"classchat/internal/config"
)

// Ask sends one prompt to the course assistant and streams the reply to w.
// When a user id is configured the stored conversation is loaded first so
// the assistant sees the same transcript as the web page.
func Ask(ctx context.Context, w io.Writer, cfg *config.Config, logger *slog.Logger, prompt string) error {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := assistant.NewClient(cfg.AssistantURL, cfg.AssistantToken, logger)
	if err != nil {
		return err
	}
	cv := assistant.NewConversation(client, cfg.AssistantModel)

	if cfg.UserID != "" {
		if err := cv.LoadHistory(ctx, cfg.UserID); err != nil {
			logger.Warn("Could not load assistant history", "error", err)
		}
	}

	fmt.Fprintf(w, "[%s]\n", assistant.ModelName(cv.Model()))
	written := 0
	final, err := cv.Ask(ctx, prompt, func(m assistant.Message) {
		if !m.Streaming {
			return
		}
		fmt.Fprint(w, m.Content[written:])
		written = len(m.Content)
	})
	if written == 0 {
		fmt.Fprint(w, final.Content)
	} else if err != nil && len(final.Content) > written {
		fmt.Fprint(w, final.Content[written:])
	}
	fmt.Fprintln(w)
	return err
}
