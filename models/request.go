package models

// AskRequest is the body of the question-answering endpoint. AnalysisType is
// optional; when it names a known mode the intent router is skipped.
type AskRequest struct {
	Question     string `json:"question"`
	AnalysisType string `json:"analysis_type,omitempty"`
}

type SearchRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit,omitempty"`
}
