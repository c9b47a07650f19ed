package model

// Query is the persisted record of one answered question. Created only
// after a successful synthesis call, never mutated.
type Query struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Ctime    int64  `json:"ctime"`
}

// Citation links a query to either an internal chunk or an external result.
// Exactly one batch of citations is written per answered query.
type Citation struct {
	ID          string  `json:"id"`
	QueryID     string  `json:"query_id"`
	TenantID    string  `json:"tenant_id"`
	ChunkID     string  `json:"chunk_id,omitempty"`
	SourceID    string  `json:"source_id,omitempty"`
	SourceTitle string  `json:"source_title"`
	Snippet     string  `json:"snippet"`
	Score       float64 `json:"score"`
	External    bool    `json:"external"`
	URL         string  `json:"url,omitempty"`
	Ctime       int64   `json:"ctime"`
}
