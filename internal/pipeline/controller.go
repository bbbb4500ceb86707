// Package pipeline owns the per-job state machine: it drives a submitted
// video through segmentation, placement, extraction, regeneration,
// re-segmentation, and splice, persisting progress to the job registry at
// each milestone.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"adpipeline/internal/domain"
	"adpipeline/internal/domain/ports"
	"adpipeline/internal/metrics"
)

const (
	defaultMinGapSeconds        = 1.5
	defaultTranscriptMaxEntries = 100
	defaultNumCandidates        = 5
	defaultMaxConcurrentJobs    = 4
	defaultBufferBefore         = 10.0
	defaultBufferAfter          = 3.0
	defaultResolution           = "720p"
	defaultSeed                 = -1

	confidenceMultipass = 0.9
)

// PromptBuilder renders the generation prompt from a placement's context.
// Satisfied by internal/generation.PromptBuilder.
type PromptBuilder interface {
	Build(ctx domain.GenerationPromptContext) string
}

// Controller owns job lifecycle: submission, background execution of the
// seven pipeline stages in strict order, and cancellation.
type Controller struct {
	Subtitles  ports.SubtitleParser
	Media      ports.MediaOperator
	Oracle     ports.Oracle
	Generation ports.GenerationClient
	Uploader   ports.Uploader
	Prompts    PromptBuilder
	Repo       ports.JobRepository
	Logger     *slog.Logger

	OutputDir            string
	MinGapSeconds        float64
	TranscriptMaxEntries int
	NumCandidates        int
	MaxConcurrentJobs    int64
	Now                  func() time.Time
	NewJobID             func() string

	initOnce sync.Once
	sem      *semaphore.Weighted

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func (c *Controller) init() {
	c.initOnce.Do(func() {
		if c.MinGapSeconds <= 0 {
			c.MinGapSeconds = defaultMinGapSeconds
		}
		if c.TranscriptMaxEntries <= 0 {
			c.TranscriptMaxEntries = defaultTranscriptMaxEntries
		}
		if c.NumCandidates <= 0 {
			c.NumCandidates = defaultNumCandidates
		}
		if c.MaxConcurrentJobs <= 0 {
			c.MaxConcurrentJobs = defaultMaxConcurrentJobs
		}
		if c.Now == nil {
			c.Now = time.Now
		}
		if c.NewJobID == nil {
			c.NewJobID = func() string { return uuid.NewString() }
		}
		c.sem = semaphore.NewWeighted(c.MaxConcurrentJobs)
		c.cancels = make(map[string]context.CancelFunc)
	})
}

// Submit validates input, creates the job in state "queued", and spawns a
// detached background worker. Validation failures surface directly to the
// caller; no job record is created for them.
func (c *Controller) Submit(ctx context.Context, input domain.SubmitVideoInput) (domain.Job, error) {
	c.init()

	if err := validateSubmission(input); err != nil {
		return domain.Job{}, err
	}

	bufferBefore := input.BufferBefore
	if bufferBefore <= 0 {
		bufferBefore = defaultBufferBefore
	}
	bufferAfter := input.BufferAfter
	if bufferAfter <= 0 {
		bufferAfter = defaultBufferAfter
	}

	id := c.NewJobID()
	job := domain.Job{
		ID:           id,
		OwnerID:      input.OwnerID,
		Status:       domain.JobStatusQueued,
		ProgressPct:  domain.ProgressQueued,
		VideoPath:    input.VideoPath,
		SubtitlePath: input.SubtitlePath,
		Paths:        c.pathsFor(id),
		Product:      input.Product,
		Profile:      input.Profile,
		BufferBefore: bufferBefore,
		BufferAfter:  bufferAfter,
		UseAI:        input.UseAI,
		CreatedAt:    c.Now(),
	}

	if err := c.Repo.Create(ctx, job); err != nil {
		return domain.Job{}, err
	}
	metrics.JobsSubmittedTotal.Inc()

	workerCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancels[id] = cancel
	c.mu.Unlock()

	go c.run(workerCtx, id)

	return job, nil
}

// Cancel marks a running job for cancellation. The worker checks between
// stages and aborts after the current stage completes or is interrupted.
func (c *Controller) Cancel(jobID string) error {
	c.init()
	c.mu.Lock()
	cancel, ok := c.cancels[jobID]
	c.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	cancel()
	return nil
}

func (c *Controller) pathsFor(jobID string) domain.JobPaths {
	base := filepath.Join(c.OutputDir, jobID)
	return domain.JobPaths{
		Original:   filepath.Join(base, "original"),
		EditedClip: filepath.Join(base, "edited_segment.mp4"),
		HLSEdited:  filepath.Join(base, "edited_hls"),
		Merged:     filepath.Join(base, "segments"),
	}
}

func validateSubmission(input domain.SubmitVideoInput) error {
	var missing []string
	if strings.TrimSpace(input.VideoPath) == "" {
		missing = append(missing, "video_path")
	}
	if strings.TrimSpace(input.SubtitlePath) == "" {
		missing = append(missing, "subtitle_path")
	}
	if strings.TrimSpace(input.Product.Product) == "" {
		missing = append(missing, "product")
	}
	if len(missing) > 0 {
		return domain.NewStageError(domain.ErrorKindInvalidInput, fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

func (c *Controller) run(ctx context.Context, jobID string) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.failByID(context.Background(), jobID, domain.NewStageError(domain.ErrorKindCancelled, "job cancelled while waiting for a worker slot", err))
		return
	}
	defer c.sem.Release(1)
	defer c.clearCancel(jobID)

	job, err := c.Repo.Get(ctx, jobID)
	if err != nil {
		c.Logger.Error("pipeline: load job failed", slog.String("job_id", jobID), slog.String("error", err.Error()))
		return
	}

	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	job.Status = domain.JobStatusProcessing
	c.persist(ctx, &job)

	if err := c.execute(ctx, &job); err != nil {
		c.fail(ctx, &job, err)
		return
	}

	completedAt := c.Now()
	job.Status = domain.JobStatusCompleted
	job.ProgressPct = domain.ProgressCompleted
	job.CompletedAt = &completedAt
	c.persist(ctx, &job)
	metrics.JobsCompletedTotal.Inc()
	metrics.JobDuration.Observe(completedAt.Sub(job.CreatedAt).Seconds())
}

func (c *Controller) clearCancel(jobID string) {
	c.mu.Lock()
	delete(c.cancels, jobID)
	c.mu.Unlock()
}

func (c *Controller) checkCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return domain.NewStageError(domain.ErrorKindCancelled, "job cancelled", ctx.Err())
	}
	return nil
}

func (c *Controller) persist(ctx context.Context, job *domain.Job) {
	if err := c.Repo.Update(ctx, *job); err != nil {
		c.Logger.Error("pipeline: persist job failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
}

func (c *Controller) fail(ctx context.Context, job *domain.Job, err error) {
	stageErr, ok := err.(*domain.StageError)
	if !ok {
		stageErr = domain.NewStageError(domain.ErrorKindInternal, err.Error(), err)
	}
	job.Status = domain.JobStatusFailed
	job.Error = &domain.JobError{Kind: stageErr.Kind, Message: stageErr.Error()}
	c.persist(context.WithoutCancel(ctx), job)
	metrics.JobsFailedTotal.WithLabelValues(string(stageErr.Kind)).Inc()
	c.Logger.Warn("pipeline: job failed",
		slog.String("job_id", job.ID),
		slog.String("kind", string(stageErr.Kind)),
		slog.String("error", stageErr.Error()))
}

func (c *Controller) failByID(ctx context.Context, jobID string, err error) {
	job, getErr := c.Repo.Get(ctx, jobID)
	if getErr != nil {
		return
	}
	c.fail(ctx, &job, err)
}
