package models

// Source types attached to a citation.
const (
	SourceTypeWeb      = "web"
	SourceTypeInternal = "internal"
)

// Source is a deduplicated citation shown next to an answer.
type Source struct {
	Content       string  `json:"content"`
	URL           string  `json:"url,omitempty"`
	ArticleNumber string  `json:"article_number"`
	SourceType    string  `json:"source_type"`
	Score         float64 `json:"score"`
}

// AnswerPayload is the response of the question-answering endpoint.
type AnswerPayload struct {
	Question     string       `json:"question"`
	Answer       string       `json:"answer"`
	Sources      []Source     `json:"sources"`
	AgentType    string       `json:"agent_type"`
	Confidence   Confidence   `json:"confidence"`
	AnalysisType AnalysisMode `json:"analysis_type"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Ready        bool   `json:"ready"`
	IndexEntries int    `json:"index_entries"`
}

type SearchHit struct {
	Content       string  `json:"content"`
	URL           string  `json:"url,omitempty"`
	ArticleNumber string  `json:"article_number"`
	ChunkIndex    int     `json:"chunk_index"`
	Score         float64 `json:"score"`
}

type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

type TopicsResponse struct {
	Topics []string `json:"topics"`
}

type AnalysisTypesResponse struct {
	AnalysisTypes []AnalysisTypeInfo `json:"analysis_types"`
}

// ErrorResponse is returned for every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
