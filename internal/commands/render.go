package commands

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"classchat/internal/view"
)

// Renderer prints view changes to a terminal as they happen.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	lastSeq int64
	shown   map[int64]string // row state last printed, by Seq
	conn    view.ConnState
	typing  string
	pinned  string
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out, shown: make(map[int64]string)}
}

// Update prints what changed since the previous view: connection state,
// new rows, rows whose reactions or receipts changed, the pinned banner and
// the typing line.
func (r *Renderer) Update(v view.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.Connection != r.conn {
		r.conn = v.Connection
		fmt.Fprintf(r.out, "-- %s --\n", v.Connection)
	}

	live := make(map[int64]string, len(v.Rows))
	for _, row := range v.Rows {
		state := rowState(row)
		live[row.Seq] = state
		switch prev, seen := r.shown[row.Seq]; {
		case row.Seq > r.lastSeq:
			r.lastSeq = row.Seq
			writeRow(r.out, "", row)
		case seen && prev != state:
			writeRow(r.out, "~", row)
		}
	}
	r.shown = live

	pinned := ""
	if v.Pinned != nil {
		pinned = v.Pinned.Sender.Name + ": " + v.Pinned.Text
	}
	if pinned != r.pinned {
		r.pinned = pinned
		if pinned == "" {
			fmt.Fprintln(r.out, "-- unpinned --")
		} else {
			fmt.Fprintf(r.out, "📌 %s (pinned by %s)\n", pinned, v.Pinned.PinnedBy.Name)
		}
	}

	if v.Typing != r.typing {
		r.typing = v.Typing
		if v.Typing != "" {
			fmt.Fprintf(r.out, "   %s\n", v.Typing)
		}
	}
}

// Full prints the whole view.
func (r *Renderer) Full(v view.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	WriteView(r.out, v)
	r.shown = make(map[int64]string, len(v.Rows))
	for _, row := range v.Rows {
		r.shown[row.Seq] = rowState(row)
		if row.Seq > r.lastSeq {
			r.lastSeq = row.Seq
		}
	}
}

// WriteView prints the roster, pinned banner and every row.
func WriteView(w io.Writer, v view.View) {
	if len(v.Roster) > 0 {
		names := make([]string, 0, len(v.Roster))
		for _, p := range v.Roster {
			mark := "○"
			if p.Online {
				mark = "●"
			}
			names = append(names, mark+" "+p.Name)
		}
		stale := ""
		if v.RosterStale {
			stale = " (refreshing)"
		}
		fmt.Fprintf(w, "Members%s: %s\n", stale, strings.Join(names, ", "))
	}
	if v.Pinned != nil {
		fmt.Fprintf(w, "📌 %s: %s (pinned by %s)\n", v.Pinned.Sender.Name, v.Pinned.Text, v.Pinned.PinnedBy.Name)
	}
	for _, row := range v.Rows {
		writeRow(w, "", row)
	}
	if v.ReplyingTo != nil {
		fmt.Fprintf(w, "Replying to %s: %s\n", v.ReplyingTo.Sender.Name, v.ReplyingTo.Text)
	}
	if v.Typing != "" {
		fmt.Fprintf(w, "   %s\n", v.Typing)
	}
}

// rowState captures the parts of a row that change after it is first shown.
func rowState(row view.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%t|", row.Timestamp, row.Pending)
	for _, badge := range row.Reactions {
		fmt.Fprintf(&b, "%s:%d,", badge.Symbol, badge.Count)
	}
	b.WriteByte('|')
	for _, p := range row.SeenBy {
		b.WriteString(p.ID)
		b.WriteByte(',')
	}
	fmt.Fprintf(&b, "+%d", row.SeenByOverflow)
	return b.String()
}

// writeRow prints a row. A non-empty mark replaces the alignment column,
// "~" flags a reprint of a row whose receipts or reactions changed.
func writeRow(w io.Writer, mark string, row view.Row) {
	ts := string(row.Timestamp)
	if row.Pending {
		ts = "sending"
	}
	side := " "
	if row.Own {
		side = ">"
	}
	if mark != "" {
		side = mark
	}
	fmt.Fprintf(w, "%s [%s] %s: %s\n", side, ts, row.Sender.Name, row.Text)

	switch {
	case row.Reply != nil:
		fmt.Fprintf(w, "    ↪ %s: %s\n", row.Reply.Sender.Name, row.Reply.Text)
	case row.IsReply:
		fmt.Fprintln(w, "    ↪ (original message unavailable)")
	}

	if len(row.Reactions) > 0 {
		badges := make([]string, 0, len(row.Reactions))
		for _, b := range row.Reactions {
			badges = append(badges, fmt.Sprintf("%s %d", b.Symbol, b.Count))
		}
		fmt.Fprintf(w, "    %s\n", strings.Join(badges, "  "))
	}

	if len(row.SeenBy) > 0 {
		names := make([]string, 0, len(row.SeenBy))
		for _, p := range row.SeenBy {
			names = append(names, p.Name)
		}
		more := ""
		if row.SeenByOverflow > 0 {
			more = fmt.Sprintf(" +%d", row.SeenByOverflow)
		}
		fmt.Fprintf(w, "    seen by %s%s\n", strings.Join(names, ", "), more)
	}
}
