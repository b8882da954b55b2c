package db

import (
	"context"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/anstrom/netsweep/internal/db Store

// Store is the persistence contract the scan service depends on. Segment
// ids are opaque strings; host records are owned by their segment and are
// replaced as a whole on save.
type Store interface {
	LoadSegments(ctx context.Context) ([]NetworkSegment, error)
	GetSegment(ctx context.Context, id string) (*NetworkSegment, error)
	CreateSegment(ctx context.Context, segment *NetworkSegment) error
	DeleteSegment(ctx context.Context, id string) error

	LoadHostRecords(ctx context.Context, segmentID string) ([]HostRecord, error)
	SaveHostRecords(ctx context.Context, segmentID string, records []HostRecord) error

	Ping(ctx context.Context) error
	Close() error
}
