package ports

import (
	"context"

	"adpipeline/internal/domain"
)

// JobRepository is the single in-process registry abstraction for Job
// records. The default implementation (internal/repository/memjob) is a
// mutex-guarded map; internal/repository/mongojob layers a durable store
// behind the same interface.
type JobRepository interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, error)
	Update(ctx context.Context, job domain.Job) error
	Delete(ctx context.Context, id string) error
}
