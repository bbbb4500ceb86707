package domain

// OracleTask enumerates the distinct LLM-backed operations the placement
// oracle performs. The original source exposed these as separate
// duck-typed client methods; here they are typed request/response pairs
// dispatched through one HTTP transport (see internal/oracle).
type OracleTask string

const (
	OracleTaskAnalyze      OracleTask = "analyze"
	OracleTaskCandidates   OracleTask = "candidates"
	OracleTaskVisionSelect OracleTask = "vision-select"
	OracleTaskProfileInfer OracleTask = "profile-infer"
	OracleTaskProductMatch OracleTask = "product-match"
)

// AnalyzeRequest is the single-pass (transcript-only) placement request.
type AnalyzeRequest struct {
	TranscriptSummary string
	Gaps              []Gap
	Product           Product
	Profile           ViewerProfile
	BufferBefore      float64
	BufferAfter       float64
}

// CandidatesRequest asks the oracle for up to N ranked transcript-reasoned
// candidate insertion points.
type CandidatesRequest struct {
	TranscriptSummary string
	Gaps              []Gap
	Product           Product
	Profile           ViewerProfile
	BufferBefore      float64
	BufferAfter       float64
	MaxCandidates     int
}

// VisionFrame pairs a base64-encoded JPEG with the transcript reasoning
// that produced its candidate insertion point.
type VisionFrame struct {
	Candidate  Candidate
	JPEGBase64 string
}

// VisionSelectRequest asks the vision-capable oracle to pick the best frame
// among N candidate frames.
type VisionSelectRequest struct {
	Frames  []VisionFrame
	Product Product
}

// VisionSelectResult is the vision pass's verdict.
type VisionSelectResult struct {
	SelectedIndex     int
	VisualDescription string
	HasPeople         bool
	IsTransitionShot  bool
	HowProductFits    string
	WhySelected       string
	WhyOthersRejected string
}

// PlatformData is the raw viewer signal used for demographic inference.
type PlatformData struct {
	ShowsWatched    []string          `json:"showsWatched"`
	Cookies         map[string]string `json:"cookies"`
	BrowsingHistory []string          `json:"browsingHistory"`
}

// ProfileInferResult is the oracle's inferred demographic segment.
type ProfileInferResult struct {
	Segment      string
	Interests    []string
	Demographics map[string]string
}

// ProductMatchResult is the oracle's recommended product for a segment.
type ProductMatchResult struct {
	Product Product
	Reason  string
}
