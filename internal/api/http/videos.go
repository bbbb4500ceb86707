package apihttp

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"adpipeline/internal/domain"
	"adpipeline/internal/hls"
)

const (
	defaultBufferSeconds = 10.0
	segmentCacheMaxAge   = "public, max-age=3600"
)

type submitRequest struct {
	VideoPath    string                `json:"video_path"`
	SubtitlePath string                `json:"subtitle_path"`
	Product      domain.Product        `json:"product"`
	UserData     *domain.ViewerProfile `json:"user_data,omitempty"`
	BufferSecs   float64               `json:"buffer_seconds"`
	BufferBefore float64               `json:"buffer_before"`
	BufferAfter  float64               `json:"buffer_after"`
	UseAI        bool                  `json:"use_ai"`
}

type submitResponse struct {
	JobID       string           `json:"job_id"`
	Status      domain.JobStatus `json:"status"`
	PlaylistURL string           `json:"playlist_url"`
}

func (s *Server) playlistURL(jobID string) string {
	return s.apiPrefix + "/videos/playlist/" + jobID + ".m3u8"
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	id, _ := identityFromContext(r.Context())

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	bufferBefore := req.BufferBefore
	bufferAfter := req.BufferAfter
	if bufferBefore <= 0 && req.BufferSecs > 0 {
		bufferBefore = req.BufferSecs
	}
	if bufferAfter <= 0 && req.BufferSecs > 0 {
		bufferAfter = req.BufferSecs
	}
	if bufferBefore <= 0 {
		bufferBefore = defaultBufferSeconds
	}

	input := domain.SubmitVideoInput{
		OwnerID:      id.UserID,
		VideoPath:    req.VideoPath,
		SubtitlePath: req.SubtitlePath,
		Product:      req.Product,
		BufferBefore: bufferBefore,
		BufferAfter:  bufferAfter,
		UseAI:        req.UseAI,
	}
	if req.UserData != nil {
		input.Profile = *req.UserData
	}

	job, err := s.controller.Submit(r.Context(), input)
	if err != nil {
		writeJobError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:       job.ID,
		Status:      job.Status,
		PlaylistURL: s.playlistURL(job.ID),
	})
}

type analyzeGapsRequest struct {
	SubtitlePath string `json:"subtitle_path"`
}

// handleAnalyzeGaps is a debug-only route: parse subtitles, return the
// detected gaps, never touch the oracle.
func (s *Server) handleAnalyzeGaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	var req analyzeGapsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cues, err := s.subtitles.ParseFile(req.SubtitlePath)
	if err != nil {
		writeJobError(w, err)
		return
	}
	gaps := s.subtitles.FindGaps(cues, s.minGapSeconds)
	writeJSON(w, http.StatusOK, map[string]any{"gaps": gaps})
}

type statusResponse struct {
	Status      domain.JobStatus  `json:"status"`
	Progress    int               `json:"progress"`
	PlaylistURL string            `json:"playlist_url,omitempty"`
	Error       *domain.JobError  `json:"error,omitempty"`
	CompletedAt *string           `json:"completed_at,omitempty"`
	Placement   *domain.Placement `json:"placement,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, s.apiPrefix+"/videos/status/")
	job, ok := s.loadOwnedJob(w, r, jobID)
	if !ok {
		return
	}

	resp := statusResponse{Status: job.Status, Progress: job.ProgressPct, Error: job.Error, Placement: job.Placement}
	if job.Status == domain.JobStatusProcessing || job.Status == domain.JobStatusCompleted {
		resp.PlaylistURL = s.playlistURL(job.ID)
	}
	if job.CompletedAt != nil {
		ts := job.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.CompletedAt = &ts
	}
	writeJSON(w, http.StatusOK, resp)
}

// loadOwnedJob fetches a job and enforces ownership, writing the
// appropriate error response and returning ok=false on any failure.
func (s *Server) loadOwnedJob(w http.ResponseWriter, r *http.Request, jobID string) (domain.Job, bool) {
	if jobID == "" {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return domain.Job{}, false
	}
	job, err := s.repo.Get(r.Context(), jobID)
	if err != nil {
		writeJobError(w, err)
		return domain.Job{}, false
	}
	id, _ := identityFromContext(r.Context())
	if job.OwnerID != "" && job.OwnerID != id.UserID {
		writeError(w, http.StatusForbidden, "forbidden", "not the owner of this job")
		return domain.Job{}, false
	}
	return job, true
}

// handlePlaylist synthesizes a playlist per the job's current state. A
// failed or not-yet-segmented job 404s rather than leaking half-state (spec
// §7): the playlist is never cached, so this always reflects the latest
// status.
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, s.apiPrefix+"/videos/playlist/")
	jobID := strings.TrimSuffix(tail, ".m3u8")
	job, ok := s.loadOwnedJob(w, r, jobID)
	if !ok {
		return
	}

	var playlist domain.Playlist
	switch {
	case job.Status == domain.JobStatusCompleted && job.HasEdits():
		merged, err := s.mergedPlaylist(job)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", "playlist not available")
			return
		}
		playlist = merged
	case job.Status == domain.JobStatusProcessing || job.Status == domain.JobStatusCompleted:
		original, err := readPlaylistFile(job.Paths.Original)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", "playlist not available")
			return
		}
		playlist = original
	default:
		writeError(w, http.StatusNotFound, "not_found", "playlist not available")
		return
	}

	body := hls.Emit(playlist, func(seg domain.Segment) string {
		return s.apiPrefix + "/videos/segments/" + job.ID + "/" + filepath.Base(seg.Path)
	})

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// mergedPlaylist reconstructs the spliced segment list for a completed job
// by re-running the same splice the pipeline performed, reading the
// original and edited playlists back from disk rather than persisting a
// third copy (see DESIGN.md: the playlist is always synthesized, never
// stored as source of truth for a processing/completed job).
func (s *Server) mergedPlaylist(job domain.Job) (domain.Playlist, error) {
	if job.EditedRange == nil {
		return readPlaylistFile(job.Paths.Merged)
	}
	original, err := readPlaylistFile(job.Paths.Original)
	if err != nil {
		return domain.Playlist{}, err
	}
	edited, err := readPlaylistFile(job.Paths.HLSEdited)
	if err != nil {
		return domain.Playlist{}, err
	}
	merged := hls.Splice(original.Segments, edited.Segments, job.EditedRange.StartSegment, job.EditedRange.EndSegment, nil)
	return domain.Playlist{
		Segments:       merged,
		TargetDuration: original.TargetDuration,
		MediaSequence:  0,
		EndList:        true,
	}, nil
}

func readPlaylistFile(dir string) (domain.Playlist, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "playlist.m3u8"))
	if err != nil {
		return domain.Playlist{}, err
	}
	return hls.Parse(string(raw), "")
}

// handleSegment streams a .ts file from whichever directory is currently
// authoritative for the job: Paths.Merged once completed with edits, else
// Paths.Original.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, s.apiPrefix+"/videos/segments/")
	parts := strings.SplitN(tail, "/", 2)
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not_found", "segment not found")
		return
	}
	jobID, name := parts[0], parts[1]
	job, ok := s.loadOwnedJob(w, r, jobID)
	if !ok {
		return
	}

	name = filepath.Base(name)
	dir := job.Paths.Original
	if job.Status == domain.JobStatusCompleted && job.HasEdits() {
		dir = job.Paths.Merged
	}
	path := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "segment file not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", segmentCacheMaxAge)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type profileAnalyzeRequest struct {
	PlatformData domain.PlatformData `json:"platform_data"`
}

type profileAnalyzeResponse struct {
	UserInfo      map[string]string         `json:"user_info"`
	PlatformData  domain.PlatformData       `json:"platform_data"`
	Analysis      domain.ProfileInferResult `json:"analysis"`
	FinalDecision domain.ProductMatchResult `json:"final_decision"`
}

func (s *Server) handleProfileAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
		return
	}
	var req profileAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	analysis, err := s.oracle.ProfileInfer(r.Context(), req.PlatformData)
	if err != nil {
		writeJobError(w, err)
		return
	}
	decision, err := s.oracle.ProductMatch(r.Context(), analysis)
	if err != nil {
		writeJobError(w, err)
		return
	}

	id, _ := identityFromContext(r.Context())
	writeJSON(w, http.StatusOK, profileAnalyzeResponse{
		UserInfo:      map[string]string{"id": id.UserID, "email": id.Email},
		PlatformData:  req.PlatformData,
		Analysis:      analysis,
		FinalDecision: decision,
	})
}
