package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/isdelr/taskdeck/internal/monitoring"
)

// StatsSource returns the last store sample.
type StatsSource interface {
	Stats() monitoring.StoreStats
}

// SystemHandler reports on the running service.
type SystemHandler struct {
	stats StatsSource
}

func NewSystemHandler(stats StatsSource) *SystemHandler {
	return &SystemHandler{stats: stats}
}

// GetStats returns the last store monitor sample.
func (h *SystemHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats.Stats())
}
