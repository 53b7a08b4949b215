package history

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/tracing"
	"github.com/yuta66jp/bodymake-dashboard/pkg"

	log "github.com/sirupsen/logrus"
)

const defaultOverlayWindowDays = 90

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{
		manager: manager,
	}
}

// HandleOverlay returns the per-season run-up curves aligned on days-out.
// Optional `days` query param bounds the window (default 90).
func (handler *Handler) HandleOverlay(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.overlay")
	defer span.End()

	windowDays := defaultOverlayWindowDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days <= 0 {
			http.Error(w, "error, invalid days", http.StatusBadRequest)
			return
		}
		windowDays = days
	}

	overlay := handler.manager.Overlay(windowDays)

	overlayJson, err := json.Marshal(overlay)
	if err != nil {
		log.Errorf("marshal history overlay error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(overlayJson))
}

func (handler *Handler) HandleSeasons(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.seasons")
	defer span.End()

	seasons := handler.manager.Seasons()
	if len(seasons) == 0 {
		seasons = []SeasonStats{}
	}

	seasonsJson, err := json.Marshal(seasons)
	if err != nil {
		log.Errorf("marshal history seasons error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(seasonsJson))
}
