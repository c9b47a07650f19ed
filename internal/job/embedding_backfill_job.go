package job

import (
	"context"
	"time"

	"github.com/clausea/clausea/internal/service"
)

const backfillBatchLimit = 20

// EmbeddingBackfillJob re-embeds sources left in processing, typically
// after a provider outage interrupted ingestion.
type EmbeddingBackfillJob struct {
	ingest       *service.IngestService
	delaySeconds int64
}

func NewEmbeddingBackfillJob(ingest *service.IngestService, delaySeconds int64) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{ingest: ingest, delaySeconds: delaySeconds}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.ingest == nil {
		return nil
	}
	return j.ingest.ProcessStuck(ctx, time.Duration(j.delaySeconds)*time.Second, backfillBatchLimit)
}
