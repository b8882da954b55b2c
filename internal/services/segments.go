// Package services holds the netsweep business logic that sits between the
// HTTP/CLI surfaces and the scanning engine: segment management and the
// background scan jobs.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
)

// CreateSegmentInput describes a new segment.
type CreateSegmentInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	CIDR        string `json:"cidr" validate:"required,max=18"`
	Description string `json:"description" validate:"max=1024"`
}

// SegmentService manages stored network segments.
type SegmentService struct {
	store     db.Store
	validator *validator.Validate
	logger    *logging.Logger
	now       func() time.Time
}

// NewSegmentService creates a new segment service.
func NewSegmentService(store db.Store) *SegmentService {
	return &SegmentService{
		store:     store,
		validator: validator.New(),
		logger:    logging.Default().WithComponent("segments"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns every segment.
func (s *SegmentService) List(ctx context.Context) ([]db.NetworkSegment, error) {
	return s.store.LoadSegments(ctx)
}

// Get returns one segment.
func (s *SegmentService) Get(ctx context.Context, id string) (*db.NetworkSegment, error) {
	return s.store.GetSegment(ctx, id)
}

// Create stores a segment under a new id. The CIDR is stored in canonical
// form, so "10.0.0.7/24" and "10.0.0.0/24" are the same segment.
func (s *SegmentService) Create(ctx context.Context, in CreateSegmentInput) (*db.NetworkSegment, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CIDR = strings.TrimSpace(in.CIDR)
	if err := s.validator.Struct(in); err != nil {
		return nil, errors.WrapScanError(errors.CodeValidation, "invalid segment", err)
	}

	prefix, err := scanning.NormalizeCIDR(in.CIDR)
	if err != nil {
		return nil, err
	}

	segment := &db.NetworkSegment{
		ID:          uuid.NewString(),
		Name:        in.Name,
		CIDR:        prefix.String(),
		Description: in.Description,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateSegment(ctx, segment); err != nil {
		return nil, err
	}

	s.logger.Info("Segment created", "segment_id", segment.ID, "cidr", segment.CIDR)
	return segment, nil
}

// Delete removes a segment and its host records.
func (s *SegmentService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteSegment(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Segment deleted", "segment_id", id)
	return nil
}

// Detail returns a segment with its records ordered by address.
func (s *SegmentService) Detail(ctx context.Context, id string) (*db.SegmentDetail, error) {
	segment, err := s.store.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := s.store.LoadHostRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	db.SortByIP(records)

	active := db.CountActive(records)
	return &db.SegmentDetail{
		Segment:     *segment,
		Hosts:       records,
		TotalIPs:    len(records),
		ActiveIPs:   active,
		InactiveIPs: len(records) - active,
	}, nil
}

// Stats counts segments and stored addresses.
func (s *SegmentService) Stats(ctx context.Context) (*db.Stats, error) {
	segments, err := s.store.LoadSegments(ctx)
	if err != nil {
		return nil, err
	}

	stats := &db.Stats{TotalNetworks: len(segments)}
	for _, seg := range segments {
		records, err := s.store.LoadHostRecords(ctx, seg.ID)
		if err != nil {
			return nil, err
		}
		active := db.CountActive(records)
		stats.TotalIPs += len(records)
		stats.ActiveIPs += active
		stats.InactiveIPs += len(records) - active
	}
	return stats, nil
}
