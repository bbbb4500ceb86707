package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"adpipeline/internal/domain"
)

const wsProgressPollInterval = 2 * time.Second

// handleWSJobProgress upgrades to a WebSocket and streams a single job's
// status until it reaches a terminal state or the client disconnects.
// Supplements the polling-based status endpoint; additive, does not
// change its contract.
func (s *Server) handleWSJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/ws/jobs/")
	if jobID == "" {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if _, ok := s.loadOwnedJob(w, r, jobID); !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &wsClient{hub: s.wsHub, conn: conn, send: make(chan []byte, 8), jobID: jobID}
	s.wsHub.register <- client
	go client.writePump()
	go s.pushJobProgress(jobID)
	client.readPump()
}

// pushJobProgress polls the repository and broadcasts status changes to
// subscribers of jobID until the job reaches a terminal state.
func (s *Server) pushJobProgress(jobID string) {
	ticker := time.NewTicker(wsProgressPollInterval)
	defer ticker.Stop()

	lastStatus := ""
	lastProgress := -1
	for range ticker.C {
		job, err := s.repo.Get(context.Background(), jobID)
		if err != nil {
			return
		}
		if string(job.Status) == lastStatus && job.ProgressPct == lastProgress {
			if isTerminalStatus(job.Status) {
				return
			}
			continue
		}
		lastStatus = string(job.Status)
		lastProgress = job.ProgressPct
		s.wsHub.BroadcastJobProgress(jobID, statusResponse{
			Status:   job.Status,
			Progress: job.ProgressPct,
			Error:    job.Error,
		})
		if isTerminalStatus(job.Status) {
			return
		}
	}
}

func isTerminalStatus(status domain.JobStatus) bool {
	return status == domain.JobStatusCompleted || status == domain.JobStatusFailed
}
