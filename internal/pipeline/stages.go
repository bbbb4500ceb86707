package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"adpipeline/internal/domain"
	"adpipeline/internal/hls"
	"adpipeline/internal/metrics"
	"adpipeline/internal/subtitle"
)

// execute runs the seven pipeline stages in strict order:
//  1. segment original -> original/
//  2. run placement oracle
//  3. extract buffer clip via the media operator
//  4. run generation client on the clip
//  5. segment the regenerated clip -> edited_hls/
//  6. splice into segments/
//  7. update job with edited_range and final segment count
//
// Any stage error is a *domain.StageError; the caller transitions the job
// to failed with its classification. There is no automatic retry across
// stages — transient retries are internal to the generation client.
func (c *Controller) execute(ctx context.Context, job *domain.Job) error {
	originalPlaylist, err := c.segmentOriginal(ctx, job)
	if err != nil {
		return err
	}
	if err := c.checkCancelled(ctx); err != nil {
		return err
	}

	if err := c.placeAd(ctx, job); err != nil {
		return err
	}
	if err := c.checkCancelled(ctx); err != nil {
		return err
	}

	if err := c.Media.Extract(ctx, job.VideoPath, job.Placement.BufferStart, job.Placement.BufferEnd, job.Paths.EditedClip); err != nil {
		return err
	}
	if err := c.checkCancelled(ctx); err != nil {
		return err
	}

	if err := c.generate(ctx, job); err != nil {
		return err
	}
	if err := c.checkCancelled(ctx); err != nil {
		return err
	}

	editedPlaylist, err := c.timedSegmentHLS(ctx, job.Paths.EditedClip, job.Paths.HLSEdited)
	if err != nil {
		return err
	}

	if err := c.splice(job, originalPlaylist, editedPlaylist); err != nil {
		return err
	}
	job.ProgressPct = domain.ProgressPostSplice

	return nil
}

func (c *Controller) segmentOriginal(ctx context.Context, job *domain.Job) (domain.Playlist, error) {
	playlist, err := c.timedSegmentHLS(ctx, job.VideoPath, job.Paths.Original)
	if err != nil {
		return domain.Playlist{}, err
	}
	job.SegmentCount = len(playlist.Segments)
	job.ProgressPct = domain.ProgressPostHLS
	c.persist(ctx, job)
	return playlist, nil
}

// timedSegmentHLS wraps the media operator's HLS segmentation call with an
// observation of wall-clock duration, used for both the original video and
// the regenerated clip.
func (c *Controller) timedSegmentHLS(ctx context.Context, src, dir string) (domain.Playlist, error) {
	start := time.Now()
	playlist, err := c.Media.SegmentHLS(ctx, src, dir, hls.DefaultTargetSegmentSeconds)
	metrics.HLSSegmentDuration.Observe(time.Since(start).Seconds())
	return playlist, err
}

func (c *Controller) placeAd(ctx context.Context, job *domain.Job) error {
	cues, err := c.Subtitles.ParseFile(job.SubtitlePath)
	if err != nil {
		return err
	}
	gaps := c.Subtitles.FindGaps(cues, c.MinGapSeconds)
	summary := c.Subtitles.TranscriptSummary(cues, c.TranscriptMaxEntries)

	var placement domain.Placement
	if job.UseAI {
		placement, err = c.placeAdMultipass(ctx, job, cues, gaps, summary)
	} else {
		placement, err = c.Oracle.Analyze(ctx, domain.AnalyzeRequest{
			TranscriptSummary: summary,
			Gaps:              gaps,
			Product:           job.Product,
			Profile:           job.Profile,
			BufferBefore:      job.BufferBefore,
			BufferAfter:       job.BufferAfter,
		})
	}
	if err != nil {
		return err
	}

	job.Placement = &placement
	job.ProgressPct = domain.ProgressPostPlacement
	c.persist(ctx, job)
	return nil
}

// placeAdMultipass runs the oracle's two-pass flow: transcript-reasoned candidate
// generation, then vision-based selection among each candidate's grabbed
// frame. This is the "default for high-value runs" mode; single-pass
// Analyze is used otherwise (see DESIGN.md open question decisions for how
// the submission's use_ai flag maps onto this choice).
func (c *Controller) placeAdMultipass(ctx context.Context, job *domain.Job, cues []domain.Cue, gaps []domain.Gap, summary string) (domain.Placement, error) {
	candidates, err := c.Oracle.Candidates(ctx, domain.CandidatesRequest{
		TranscriptSummary: summary,
		Gaps:              gaps,
		Product:           job.Product,
		Profile:           job.Profile,
		BufferBefore:      job.BufferBefore,
		BufferAfter:       job.BufferAfter,
		MaxCandidates:     c.NumCandidates,
	})
	if err != nil {
		return domain.Placement{}, err
	}

	frames := make([]domain.VisionFrame, len(candidates))
	for i, cand := range candidates {
		jpeg, err := c.Media.GrabFrame(ctx, job.VideoPath, cand.InsertionPoint)
		if err != nil {
			return domain.Placement{}, err
		}
		frames[i] = domain.VisionFrame{Candidate: cand, JPEGBase64: base64.StdEncoding.EncodeToString(jpeg)}
	}

	vision, err := c.Oracle.VisionSelect(ctx, domain.VisionSelectRequest{Frames: frames, Product: job.Product})
	if err != nil {
		return domain.Placement{}, err
	}

	selected := candidates[vision.SelectedIndex]
	before, after := subtitle.ContextWindow(cues, selected.BufferStart, selected.BufferEnd)

	return domain.Placement{
		InsertionPoint:    selected.InsertionPoint,
		BufferStart:       selected.BufferStart,
		BufferEnd:         selected.BufferEnd,
		Confidence:        confidenceMultipass,
		Reason:            selected.TranscriptReason,
		VisualDescription: vision.VisualDescription,
		RejectionNotes:    vision.WhyOthersRejected,
		SummaryBefore:     before,
		SummaryAfter:      after,
		OverallAnalysis:   selected.OverallAnalysis,
	}, nil
}

func (c *Controller) generate(ctx context.Context, job *domain.Job) error {
	data, err := os.ReadFile(job.Paths.EditedClip)
	if err != nil {
		return domain.NewStageError(domain.ErrorKindInternal, "read buffer clip for upload", err)
	}

	url, err := c.Uploader.Upload(ctx, data, filepath.Base(job.Paths.EditedClip))
	if err != nil {
		return err
	}

	prompt := c.Prompts.Build(domain.GenerationPromptContext{
		Product:       job.Product,
		SummaryBefore: job.Placement.SummaryBefore,
		SummaryAfter:  job.Placement.SummaryAfter,
		Profile:       job.Profile,
		ClipDurationS: job.Placement.BufferEnd - job.Placement.BufferStart,
	})

	result, err := c.Generation.Generate(ctx, domain.GenerationRequest{
		VideoURL:   url,
		Prompt:     prompt,
		Resolution: defaultResolution,
		Seed:       defaultSeed,
	})
	if err != nil {
		return err
	}

	return c.Generation.Download(ctx, result.OutputURL, job.Paths.EditedClip)
}

// splice grafts the regenerated clip's segments into the merged directory,
// then copies the physical segment files:
// original[0:a) and original[b:) byte-for-byte, edited[0:len) renamed into
// the gap they fill.
func (c *Controller) splice(job *domain.Job, original, edited domain.Playlist) error {
	if err := os.MkdirAll(job.Paths.Merged, 0o755); err != nil {
		return domain.NewStageError(domain.ErrorKindInternal, "create merged segment directory", err)
	}

	a, b := hls.SegmentRangeForWindow(original.Segments, job.Placement.BufferStart, job.Placement.BufferEnd)
	merged := hls.Splice(original.Segments, edited.Segments, a, b, nil)

	for i, seg := range merged {
		var src string
		switch {
		case i < a:
			src = filepath.Join(job.Paths.Original, original.Segments[i].Path)
		case i < a+len(edited.Segments):
			src = filepath.Join(job.Paths.HLSEdited, edited.Segments[i-a].Path)
		default:
			src = filepath.Join(job.Paths.Original, original.Segments[b+(i-(a+len(edited.Segments)))].Path)
		}
		dst := filepath.Join(job.Paths.Merged, seg.Path)
		if err := copyFile(src, dst); err != nil {
			return domain.NewStageError(domain.ErrorKindInternal, fmt.Sprintf("copy merged segment %s", seg.Path), err)
		}
	}

	job.EditedRange = &domain.EditedRange{
		StartSegment:  a,
		EndSegment:    b,
		NewEndSegment: a + len(edited.Segments),
	}
	job.SegmentCount = len(merged)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
