package model

type SourceStatus string

const (
	SourceStatusProcessing SourceStatus = "processing"
	SourceStatusReady      SourceStatus = "ready"
	SourceStatusEmpty      SourceStatus = "empty"
)

type Source struct {
	ID       string       `json:"id"`
	TenantID string       `json:"tenant_id"`
	Title    string       `json:"title"`
	Type     string       `json:"type"`
	Status   SourceStatus `json:"status"`
	Ctime    int64        `json:"ctime"`
	Mtime    int64        `json:"mtime"`
}
