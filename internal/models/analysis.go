package models

// AnalysisStatus is the per-frame status tag reported by the analysis service.
type AnalysisStatus string

const (
	StatusActive   AnalysisStatus = "active"
	StatusPaused   AnalysisStatus = "paused"
	StatusNoPerson AnalysisStatus = "no_person"
)

// Landmark is a single pose keypoint in normalized image coordinates.
// Landmarks are used only for UI overlay and are never persisted.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// AnalysisResult is the analysis service's output for one frame.
// Count and Calories are monotonic non-decreasing within a session; the
// pipeline enforces this when folding results into live state.
type AnalysisResult struct {
	Success   bool                `json:"success"`
	Count     int                 `json:"count"`
	Calories  float64             `json:"calories"`
	Status    AnalysisStatus      `json:"status"`
	Feedback  string              `json:"feedback"`
	Landmarks map[string]Landmark `json:"landmarks,omitempty"`
}
