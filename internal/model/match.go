package model

// MatchOrigin names the retrieval channel that produced a match.
type MatchOrigin string

const (
	OriginLexical MatchOrigin = "lexical"
	OriginVector  MatchOrigin = "vector"
	OriginExact   MatchOrigin = "exact"
)

// Match is a transient retrieval result. It lives only for the duration of
// one question and is never persisted directly; surviving matches become
// citations after synthesis.
type Match struct {
	ChunkID  string      `json:"chunk_id"`
	SourceID string      `json:"source_id"`
	Content  string      `json:"content"`
	Origin   MatchOrigin `json:"origin"`
	Score    float64     `json:"score"`
}

// ExternalResult is a transient hit from the external legal-search service.
// It never becomes a chunk; it only surfaces as a citation.
type ExternalResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Fond    string `json:"fond"`
}
