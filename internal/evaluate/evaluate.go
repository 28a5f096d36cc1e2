package evaluate

import "context"

// Dimension is one scored aspect of an answer.
type Dimension struct {
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// Result is the structured feedback for one answered question. A nil
// *Result means the evaluator was unavailable; that is a valid terminal
// outcome, not an error.
type Result struct {
	OverallScore float64              `json:"overallScore"`
	Summary      string               `json:"summary"`
	Dimensions   map[string]Dimension `json:"dimensions"`
	Strengths    []string             `json:"strengths"`
	Improvements []string             `json:"improvements"`
}

// Evaluator asks the remote evaluation model for rubric feedback on a
// consolidated answer. Implementations return an error on any remote
// failure or malformed response; the caller degrades to absent.
type Evaluator interface {
	Evaluate(ctx context.Context, question, answer string) (*Result, error)
}
