package exitreq

import (
	"context"
	"time"
)

// Store persists exit requests.
//
// Create must be atomic: a concurrent Get observes either nothing or the
// complete record. UpdateStatus writes only the decision fields and is an
// unconditional overwrite, so two racing decisions resolve last-write-wins.
type Store interface {
	Create(ctx context.Context, r ExitRequest) error
	Get(ctx context.Context, id string) (ExitRequest, error)
	UpdateStatus(ctx context.Context, id string, status Status, decidedBy string, decidedAt time.Time) (ExitRequest, error)

	// ListByRequester returns a requester's records, newest first.
	ListByRequester(ctx context.Context, requesterID string) ([]ExitRequest, error)

	// ListAll returns every record, newest first. An empty status means no filter.
	ListAll(ctx context.Context, status Status) ([]ExitRequest, error)
}
