package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"adpipeline/internal/domain"
	"adpipeline/internal/repository/memjob"
)

type fakeSubtitles struct{}

func (fakeSubtitles) ParseFile(path string) ([]domain.Cue, error) {
	return []domain.Cue{
		{Index: 1, Start: 0, End: 2, Text: "hello"},
		{Index: 2, Start: 20, End: 22, Text: "world"},
	}, nil
}
func (fakeSubtitles) FindGaps(cues []domain.Cue, minGap float64) []domain.Gap {
	return []domain.Gap{{Start: 2, End: 20, Duration: 18}}
}
func (fakeSubtitles) TranscriptSummary(cues []domain.Cue, maxEntries int) string { return "summary" }

type fakeMedia struct {
	mu          sync.Mutex
	segmentDirs []string
}

func (m *fakeMedia) Probe(ctx context.Context, path string) (domain.MediaInfo, error) {
	return domain.MediaInfo{Duration: 100}, nil
}

func (m *fakeMedia) Extract(ctx context.Context, src string, t0, t1 float64, dstPath string) error {
	return os.WriteFile(dstPath, []byte("clip"), 0o644)
}

func (m *fakeMedia) SegmentHLS(ctx context.Context, src, dir string, targetSeg float64) (domain.Playlist, error) {
	m.mu.Lock()
	m.segmentDirs = append(m.segmentDirs, dir)
	m.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Playlist{}, err
	}
	segs := []domain.Segment{
		{Index: 0, Path: "segment000.ts", DurationS: 10},
		{Index: 1, Path: "segment001.ts", DurationS: 10},
		{Index: 2, Path: "segment002.ts", DurationS: 10},
	}
	for _, s := range segs {
		if err := os.WriteFile(filepath.Join(dir, s.Path), []byte("ts:"+s.Path), 0o644); err != nil {
			return domain.Playlist{}, err
		}
	}
	return domain.Playlist{Segments: segs, TargetDuration: 10}, nil
}

func (m *fakeMedia) Concat(ctx context.Context, a, b, c, dstPath string) error { return nil }

func (m *fakeMedia) GrabFrame(ctx context.Context, src string, t float64) ([]byte, error) {
	return []byte("jpeg-bytes"), nil
}

type fakeOracle struct {
	useVision bool
}

func (o *fakeOracle) Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.Placement, error) {
	return domain.Placement{
		InsertionPoint: 10, BufferStart: 5, BufferEnd: 15,
		Confidence: 0.7, Reason: "single pass",
		SummaryBefore: "before", SummaryAfter: "after",
	}, nil
}

func (o *fakeOracle) Candidates(ctx context.Context, req domain.CandidatesRequest) ([]domain.Candidate, error) {
	return []domain.Candidate{
		{Rank: 1, InsertionPoint: 10, BufferStart: 5, BufferEnd: 15, TranscriptReason: "quiet"},
		{Rank: 2, InsertionPoint: 12, BufferStart: 7, BufferEnd: 17, TranscriptReason: "also quiet"},
	}, nil
}

func (o *fakeOracle) VisionSelect(ctx context.Context, req domain.VisionSelectRequest) (domain.VisionSelectResult, error) {
	return domain.VisionSelectResult{SelectedIndex: 1, VisualDescription: "clean shot", WhyOthersRejected: "busy scene"}, nil
}

func (o *fakeOracle) ProfileInfer(ctx context.Context, data domain.PlatformData) (domain.ProfileInferResult, error) {
	return domain.ProfileInferResult{}, nil
}

func (o *fakeOracle) ProductMatch(ctx context.Context, profile domain.ProfileInferResult) (domain.ProductMatchResult, error) {
	return domain.ProductMatchResult{}, nil
}

type fakeGeneration struct{}

func (fakeGeneration) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	return domain.GenerationResult{OutputURL: "https://example.test/out.mp4"}, nil
}

func (fakeGeneration) Download(ctx context.Context, url, dstPath string) error {
	return os.WriteFile(dstPath, []byte("regenerated"), 0o644)
}

type fakeUploader struct{}

func (fakeUploader) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	return "https://example.test/" + filename, nil
}

type fakePrompts struct{}

func (fakePrompts) Build(ctx domain.GenerationPromptContext) string { return "prompt" }

func newTestController(t *testing.T, useVision bool) (*Controller, *fakeMedia) {
	t.Helper()
	media := &fakeMedia{}
	return &Controller{
		Subtitles:  fakeSubtitles{},
		Media:      media,
		Oracle:     &fakeOracle{useVision: useVision},
		Generation: fakeGeneration{},
		Uploader:   fakeUploader{},
		Prompts:    fakePrompts{},
		Repo:       memjob.New(),
		Logger:     slog.New(slog.NewTextHandler(os.Stderr, nil)),
		OutputDir:  t.TempDir(),
		Now:        func() time.Time { return time.Unix(0, 0) },
	}, media
}

func mustWriteSourceFiles(t *testing.T, dir string) (video, subs string) {
	t.Helper()
	video = filepath.Join(dir, "in.mp4")
	subs = filepath.Join(dir, "in.srt")
	if err := os.WriteFile(video, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(subs, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return video, subs
}

func waitForTerminal(t *testing.T, c *Controller, jobID string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := c.Repo.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == domain.JobStatusCompleted || job.Status == domain.JobStatusFailed {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
	return domain.Job{}
}

func TestSubmitSinglePassRunsAllStagesToCompletion(t *testing.T) {
	c, media := newTestController(t, false)
	video, subs := mustWriteSourceFiles(t, t.TempDir())

	job, err := c.Submit(context.Background(), domain.SubmitVideoInput{
		OwnerID: "owner-1", VideoPath: video, SubtitlePath: subs,
		Product: domain.Product{Product: "Widget"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}

	final := waitForTerminal(t, c, job.ID)
	if final.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s: %+v", final.Status, final.Error)
	}
	if final.ProgressPct != domain.ProgressCompleted {
		t.Fatalf("expected progress 100, got %d", final.ProgressPct)
	}
	if final.Placement == nil || final.Placement.Reason != "single pass" {
		t.Fatalf("expected single-pass placement, got %+v", final.Placement)
	}
	if final.EditedRange == nil {
		t.Fatal("expected edited range to be set")
	}
	if len(media.segmentDirs) != 2 {
		t.Fatalf("expected 2 SegmentHLS calls, got %d", len(media.segmentDirs))
	}
	mergedFiles, err := os.ReadDir(final.Paths.Merged)
	if err != nil {
		t.Fatalf("read merged dir: %v", err)
	}
	if len(mergedFiles) != final.SegmentCount {
		t.Fatalf("expected %d merged files, found %d", final.SegmentCount, len(mergedFiles))
	}
}

func TestSubmitMultipassUsesVisionSelection(t *testing.T) {
	c, _ := newTestController(t, true)
	video, subs := mustWriteSourceFiles(t, t.TempDir())

	job, err := c.Submit(context.Background(), domain.SubmitVideoInput{
		OwnerID: "owner-1", VideoPath: video, SubtitlePath: subs,
		Product: domain.Product{Product: "Widget"}, UseAI: true,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	final := waitForTerminal(t, c, job.ID)
	if final.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s: %+v", final.Status, final.Error)
	}
	if final.Placement == nil || final.Placement.InsertionPoint != 12 {
		t.Fatalf("expected the vision-selected (index 1) candidate, got %+v", final.Placement)
	}
	if final.Placement.Confidence != confidenceMultipass {
		t.Fatalf("expected fixed multipass confidence, got %v", final.Placement.Confidence)
	}
}

func TestSubmitMissingRequiredFieldsFailsValidation(t *testing.T) {
	c, _ := newTestController(t, false)
	_, err := c.Submit(context.Background(), domain.SubmitVideoInput{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var stageErr *domain.StageError
	if !errors.As(err, &stageErr) || stageErr.Kind != domain.ErrorKindInvalidInput {
		t.Fatalf("expected ErrorKindInvalidInput, got %v", err)
	}
}

type failingOracle struct{ fakeOracle }

func (failingOracle) Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.Placement, error) {
	return domain.Placement{}, domain.NewStageError(domain.ErrorKindOracleUnreachable, "oracle down", nil)
}

func TestFailedStagePersistsClassifiedError(t *testing.T) {
	c, _ := newTestController(t, false)
	c.Oracle = &failingOracle{}
	video, subs := mustWriteSourceFiles(t, t.TempDir())

	job, err := c.Submit(context.Background(), domain.SubmitVideoInput{
		OwnerID: "owner-1", VideoPath: video, SubtitlePath: subs,
		Product: domain.Product{Product: "Widget"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	final := waitForTerminal(t, c, job.ID)
	if final.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.Error == nil || final.Error.Kind != domain.ErrorKindOracleUnreachable {
		t.Fatalf("expected ErrorKindOracleUnreachable, got %+v", final.Error)
	}
}

func TestCancelUnknownJobReturnsNotFound(t *testing.T) {
	c, _ := newTestController(t, false)
	c.init()
	if err := c.Cancel("does-not-exist"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelDuringProcessingSurfacesCancelledError(t *testing.T) {
	c, _ := newTestController(t, false)
	c.Oracle = &blockingOracle{unblock: make(chan struct{})}
	video, subs := mustWriteSourceFiles(t, t.TempDir())

	job, err := c.Submit(context.Background(), domain.SubmitVideoInput{
		OwnerID: "owner-1", VideoPath: video, SubtitlePath: subs,
		Product: domain.Product{Product: "Widget"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j, _ := c.Repo.Get(context.Background(), job.ID); j.Status == domain.JobStatusProcessing {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := c.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(c.Oracle.(*blockingOracle).unblock)

	final := waitForTerminal(t, c, job.ID)
	if final.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed after cancel, got %s", final.Status)
	}
	if final.Error == nil || final.Error.Kind != domain.ErrorKindCancelled {
		t.Fatalf("expected ErrorKindCancelled, got %+v", final.Error)
	}
}

type blockingOracle struct {
	fakeOracle
	unblock chan struct{}
}

func (o *blockingOracle) Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.Placement, error) {
	select {
	case <-o.unblock:
	case <-ctx.Done():
	}
	return domain.Placement{BufferStart: 5, BufferEnd: 15, SummaryBefore: "b", SummaryAfter: "a"}, nil
}
