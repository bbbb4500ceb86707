package domain

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobPaths holds the on-disk layout under the job's output directory,
// mirroring the persisted-state layout:
//
//	<out>/<job_id>/original/           playlist.m3u8, segment000.ts, ...
//	<out>/<job_id>/edited_segment.mp4  buffer clip (regenerated)
//	<out>/<job_id>/edited_hls/         playlist.m3u8, segment000.ts, ...
//	<out>/<job_id>/segments/           merged sequence, segment000.ts, ...
//
// playlist_temp.m3u8 has no counterpart here: the playlist is always
// synthesized per request rather than cached (see DESIGN.md open question
// decisions).
type JobPaths struct {
	Original   string `json:"original"`
	EditedClip string `json:"editedClip"`
	HLSEdited  string `json:"hlsEdited"`
	Merged     string `json:"merged"`
}

// EditedRange records which original segments were replaced and how many
// edited segments replaced them.
type EditedRange struct {
	StartSegment  int `json:"startSegment"`
	EndSegment    int `json:"endSegment"`
	NewEndSegment int `json:"newEndSegment"`
}

// JobError captures a terminal failure's classification and message.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// SubmitVideoInput is the validated payload behind POST /videos/process.
type SubmitVideoInput struct {
	OwnerID      string
	VideoPath    string
	SubtitlePath string
	Product      Product
	Profile      ViewerProfile
	BufferBefore float64
	BufferAfter  float64
	UseAI        bool
}

// Job is a single end-to-end processing request with its owning identity
// and state. Status transitions are strictly monotonic except
// processing -> failed.
type Job struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"ownerId"`
	Status       JobStatus     `json:"status"`
	ProgressPct  int           `json:"progressPct"`
	VideoPath    string        `json:"videoPath"`
	SubtitlePath string        `json:"subtitlePath"`
	Paths        JobPaths      `json:"paths"`
	Product      Product       `json:"product"`
	Profile      ViewerProfile `json:"profile,omitempty"`
	BufferBefore float64       `json:"bufferBefore"`
	BufferAfter  float64       `json:"bufferAfter"`
	UseAI        bool          `json:"useAI"`
	Placement    *Placement    `json:"placement,omitempty"`
	SegmentCount int           `json:"segmentCount"`
	EditedRange  *EditedRange  `json:"editedRange,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
	Error        *JobError     `json:"error,omitempty"`
}

// Progress hints published at known pipeline milestones. Advisory only; no
// consumer relies on monotonicity within a range.
const (
	ProgressQueued        = 0
	ProgressPostHLS       = 30
	ProgressPostPlacement = 60
	ProgressPostSplice    = 90
	ProgressCompleted     = 100
)

func (j Job) HasEdits() bool {
	return j.EditedRange != nil
}
