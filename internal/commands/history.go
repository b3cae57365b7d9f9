package commands

import (
	"errors"
	"fmt"
	"io"

	"classchat/internal/config"
	"classchat/internal/models"
	"classchat/internal/storage"
	"classchat/internal/view"
)

// PrintHistory prints the cached transcript of the configured group, then a
// one-line summary of every other cached group.
func PrintHistory(w io.Writer, cfg *config.Config) error {
	if cfg.HistoryDB == "" {
		return fmt.Errorf("CHAT_HISTORY_DB is not set")
	}

	db, err := storage.NewBboltStorage(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	group, err := db.GetGroup(cfg.GroupID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		fmt.Fprintf(w, "No history for %s\n", cfg.GroupID)
	case err != nil:
		return err
	default:
		messages, err := db.ListMessages(cfg.GroupID, cfg.MaxMessages)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d messages, last %s\n", group.ID, group.MessageCount, group.LastTimestamp)
		WriteView(w, view.Project(view.State{
			Self:       models.Identity{ID: cfg.UserID, Name: cfg.UserName, AvatarRef: cfg.Avatar},
			Messages:   messages,
			Connection: view.Disconnected,
		}))
	}

	groups, err := db.ListGroups()
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.ID == cfg.GroupID {
			continue
		}
		fmt.Fprintf(w, "  %s: %d messages, updated %s\n", g.ID, g.MessageCount, g.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
