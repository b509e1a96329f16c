package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/tweetsync/internal/service"
)

// SyncRunner starts a pass or joins the running one. *scheduler.Runner
// satisfies it.
type SyncRunner interface {
	Run(ctx context.Context) (*service.SyncReport, bool, error)
}

type SyncHandler struct {
	runner SyncRunner
	logger *slog.Logger
}

func NewSyncHandler(runner SyncRunner, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{runner: runner, logger: logger}
}

type syncResponse struct {
	Report *service.SyncReport `json:"report"`
	Shared bool                `json:"shared"`
}

// HandleSync runs one sync pass and returns its report.
//
// HTTP: POST /api/sync
//
// A request arriving while a pass is running waits for it and gets the same
// report with "shared": true.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	report, shared, err := h.runner.Run(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Report: report, Shared: shared})
}
