package http

import (
	"net/http"

	"github.com/swiftdrop/deliveryhub/internal/domain/history"
)

var validWindows = map[history.Window]bool{
	history.WindowAll:   true,
	history.WindowToday: true,
	history.WindowWeek:  true,
	history.WindowMonth: true,
}

// ListHistory returns archived deliveries, optionally narrowed by
// ?platform= (case-insensitive) and ?window= (today, week, month, all).
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAgent(w, r); !ok {
		return
	}

	f := history.Filter{
		Platform: r.URL.Query().Get("platform"),
		Window:   history.WindowAll,
	}
	if win := r.URL.Query().Get("window"); win != "" {
		f.Window = history.Window(win)
		if !validWindows[f.Window] {
			writeError(w, http.StatusBadRequest, "unknown window "+win)
			return
		}
	}

	records, err := h.history.List(r.Context(), f)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// ClearHistory removes all archived records.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAgent(w, r); !ok {
		return
	}

	if err := h.history.Clear(r.Context()); err != nil {
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
