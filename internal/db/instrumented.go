package db

import (
	"context"
	"time"

	"github.com/anstrom/netsweep/internal/metrics"
)

// InstrumentedStore records the duration and outcome of every call on the
// wrapped store.
type InstrumentedStore struct {
	Store
	metrics *metrics.PrometheusMetrics
}

// WithMetrics wraps store with storage operation metrics.
func WithMetrics(store Store) *InstrumentedStore {
	return &InstrumentedStore{Store: store, metrics: metrics.GetGlobalMetrics()}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.metrics.RecordStorageOperation(op, time.Since(start), err)
}

func (s *InstrumentedStore) LoadSegments(ctx context.Context) (segments []NetworkSegment, err error) {
	defer func(start time.Time) { s.observe("load_segments", start, err) }(time.Now())
	return s.Store.LoadSegments(ctx)
}

func (s *InstrumentedStore) GetSegment(ctx context.Context, id string) (segment *NetworkSegment, err error) {
	defer func(start time.Time) { s.observe("get_segment", start, err) }(time.Now())
	return s.Store.GetSegment(ctx, id)
}

func (s *InstrumentedStore) CreateSegment(ctx context.Context, segment *NetworkSegment) (err error) {
	defer func(start time.Time) { s.observe("create_segment", start, err) }(time.Now())
	return s.Store.CreateSegment(ctx, segment)
}

func (s *InstrumentedStore) DeleteSegment(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe("delete_segment", start, err) }(time.Now())
	return s.Store.DeleteSegment(ctx, id)
}

func (s *InstrumentedStore) LoadHostRecords(ctx context.Context, segmentID string) (records []HostRecord, err error) {
	defer func(start time.Time) { s.observe("load_host_records", start, err) }(time.Now())
	return s.Store.LoadHostRecords(ctx, segmentID)
}

func (s *InstrumentedStore) SaveHostRecords(ctx context.Context, segmentID string, records []HostRecord) (err error) {
	defer func(start time.Time) { s.observe("save_host_records", start, err) }(time.Now())
	return s.Store.SaveHostRecords(ctx, segmentID, records)
}
