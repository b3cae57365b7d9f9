package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"classchat/internal/view"
)

// ViewSource returns the current projection of a session.
type ViewSource interface {
	View() view.View
}

type API struct {
	source ViewSource
	logger *slog.Logger
}

func New(source ViewSource, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{source: source, logger: logger}
}

type StatusResponse struct {
	Connection  view.ConnState `json:"connection"`
	Online      int            `json:"online"`
	Known       int            `json:"known"`
	Messages    int            `json:"messages"`
	Pending     int            `json:"pending"`
	RosterStale bool           `json:"rosterStale"`
	Typing      string         `json:"typing,omitempty"`
}

// HealthHandler reports 200 while the gateway connection is open.
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	v := a.source.View()
	if v.Connection != view.Connected {
		http.Error(w, string(v.Connection), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) StatusHandler(w http.ResponseWriter, r *http.Request) {
	v := a.source.View()
	resp := StatusResponse{
		Connection:  v.Connection,
		Known:       len(v.Roster),
		Messages:    len(v.Rows),
		RosterStale: v.RosterStale,
		Typing:      v.Typing,
	}
	for _, p := range v.Roster {
		if p.Online {
			resp.Online++
		}
	}
	for _, row := range v.Rows {
		if row.Pending {
			resp.Pending++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		a.logger.Error("Failed to encode status response", "error", err)
	}
}

// ViewHandler dumps the full projection, for debugging renderers.
func (a *API) ViewHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.source.View()); err != nil {
		a.logger.Error("Failed to encode view response", "error", err)
	}
}
