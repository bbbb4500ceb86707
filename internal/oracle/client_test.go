package oracle

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"adpipeline/internal/domain"
)

func newTestServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chatResponse{}
		resp.Choices = []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{{Message: struct {
			Content string `json:"content"`
		}{Content: content}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestCandidatesParsesInsertionPoints(t *testing.T) {
	body := `{"candidates":[{"rank":1,"insertion_point":"00:01:05,000","buffer_start":"00:00:55,000","buffer_end":"00:01:08,000","reason":"quiet pause","transcript_context":"scene change"}]}`
	srv := newTestServer(t, body)
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	candidates, err := c.Candidates(t.Context(), domain.CandidatesRequest{
		TranscriptSummary: "some summary",
		Product:           domain.Product{Company: "Acme", Product: "Widget", Category: "gadgets"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].InsertionPoint != 65.0 {
		t.Fatalf("expected insertion point 65.0s, got %v", candidates[0].InsertionPoint)
	}
	if candidates[0].BufferStart != 55.0 || candidates[0].BufferEnd != 68.0 {
		t.Fatalf("unexpected buffer bounds: %+v", candidates[0])
	}
}

func TestCandidatesCarriesOverallAnalysis(t *testing.T) {
	body := `{"candidates":[{"rank":1,"insertion_point":"00:01:05,000","buffer_start":"00:00:55,000","buffer_end":"00:01:08,000","reason":"quiet pause"}],"overall_analysis":"calm stretch mid-episode, low risk of interrupting dialogue"}`
	srv := newTestServer(t, body)
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	candidates, err := c.Candidates(t.Context(), domain.CandidatesRequest{TranscriptSummary: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[0].OverallAnalysis != "calm stretch mid-episode, low risk of interrupting dialogue" {
		t.Fatalf("unexpected overall analysis: %q", candidates[0].OverallAnalysis)
	}

	placement, err := c.Analyze(t.Context(), domain.AnalyzeRequest{TranscriptSummary: "x"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if placement.OverallAnalysis != "calm stretch mid-episode, low risk of interrupting dialogue" {
		t.Fatalf("Analyze did not carry overall analysis through: %q", placement.OverallAnalysis)
	}
}

func TestCandidatesRecoversFromProseWrappedJSON(t *testing.T) {
	body := "Sure thing! Here's the JSON:\n```json\n{\"candidates\":[{\"rank\":1,\"insertion_point\":\"00:00:10,000\",\"buffer_start\":\"00:00:05,000\",\"buffer_end\":\"00:00:13,000\",\"reason\":\"r\"}]}\n```"
	srv := newTestServer(t, body)
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	candidates, err := c.Candidates(t.Context(), domain.CandidatesRequest{TranscriptSummary: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 recovered candidate, got %d", len(candidates))
	}
}

func TestCandidatesEmptyListIsNoCandidatesError(t *testing.T) {
	srv := newTestServer(t, `{"candidates":[]}`)
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	_, err := c.Candidates(t.Context(), domain.CandidatesRequest{TranscriptSummary: "x"})
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
	var stageErr *domain.StageError
	if !stageErrAs(err, &stageErr) || stageErr.Kind != domain.ErrorKindNoCandidates {
		t.Fatalf("expected ErrorKindNoCandidates, got %v", err)
	}
}

func TestOracleUnreachableReturnsClassifiedError(t *testing.T) {
	c := New("test-key", WithBaseURL("http://127.0.0.1:1"))
	_, err := c.Candidates(t.Context(), domain.CandidatesRequest{TranscriptSummary: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	var stageErr *domain.StageError
	if !stageErrAs(err, &stageErr) || stageErr.Kind != domain.ErrorKindOracleUnreachable {
		t.Fatalf("expected ErrorKindOracleUnreachable, got %v", err)
	}
}

func TestVisionSelectClampsOutOfRangeIndexToZero(t *testing.T) {
	srv := newTestServer(t, `{"selected_index":5,"timestamp":"00:00:10,000"}`)
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	result, err := c.VisionSelect(t.Context(), domain.VisionSelectRequest{
		Frames:  []domain.VisionFrame{{Candidate: domain.Candidate{InsertionPoint: 10}, JPEGBase64: "Zm9v"}},
		Product: domain.Product{Product: "Widget"},
	})
	if err != nil {
		t.Fatalf("VisionSelect: %v", err)
	}
	if result.SelectedIndex != 0 {
		t.Fatalf("SelectedIndex = %d, want 0 (clamped)", result.SelectedIndex)
	}
}

func TestVisionSelectNoFramesFails(t *testing.T) {
	c := New("test-key")
	_, err := c.VisionSelect(t.Context(), domain.VisionSelectRequest{})
	if err == nil {
		t.Fatal("expected error for empty frame list")
	}
}

func TestProfileInferParsesSegment(t *testing.T) {
	body := `{"segment":"tech enthusiast","interests":["gadgets","gaming"],"demographics":{"age_range":"25-34"}}`
	srv := newTestServer(t, body)
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	result, err := c.ProfileInfer(t.Context(), domain.PlatformData{ShowsWatched: []string{"Show A"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Segment != "tech enthusiast" {
		t.Fatalf("unexpected segment: %q", result.Segment)
	}
	if len(result.Interests) != 2 {
		t.Fatalf("expected 2 interests, got %d", len(result.Interests))
	}
}

func TestProductMatchParsesProduct(t *testing.T) {
	body := `{"company":"Acme","product":"Widget Pro","category":"gadgets","reason":"fits tech interests"}`
	srv := newTestServer(t, body)
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	result, err := c.ProductMatch(t.Context(), domain.ProfileInferResult{Segment: "tech enthusiast"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Product.Product != "Widget Pro" {
		t.Fatalf("unexpected product: %+v", result.Product)
	}
}

func stageErrAs(err error, target **domain.StageError) bool {
	se, ok := err.(*domain.StageError)
	if !ok {
		return false
	}
	*target = se
	return true
}
