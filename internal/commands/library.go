package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"classchat/internal/assistant"
	"classchat/internal/config"
)

// ListChats prints the assistant profile, stored conversations and
// available personas of the configured user.
func ListChats(ctx context.Context, w io.Writer, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := assistant.NewClient(cfg.AssistantURL, cfg.AssistantToken, logger)
	if err != nil {
		return err
	}

	if cfg.UserID != "" {
		profile, err := client.Profile(ctx, cfg.UserID)
		if err != nil {
			fmt.Fprintln(w, "Could not load existing profile.")
		} else if profile.Name != "" || profile.About != "" {
			fmt.Fprintf(w, "Profile: %s (%s)\n", profile.Name, profile.About)
		}
	}

	chats, err := client.Chats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Chats (%d):\n", len(chats))
	for _, c := range chats {
		fmt.Fprintf(w, "  %s  %s\n", c.ChatID, c.Title)
	}

	public, own, err := client.GPTs(ctx)
	if err != nil {
		return err
	}
	for _, group := range []struct {
		title string
		gpts  []assistant.GPT
	}{{"Your GPTs", own}, {"Public GPTs", public}} {
		if len(group.gpts) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", group.title)
		for _, g := range group.gpts {
			fmt.Fprintf(w, "  %s: %s\n", g.Name, g.Description)
		}
	}
	return nil
}
