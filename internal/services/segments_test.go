package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/db/mocks"
	"github.com/anstrom/netsweep/internal/errors"
)

func newSegmentService(t *testing.T) (*SegmentService, *mocks.MockStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	return NewSegmentService(store), store
}

func TestSegmentServiceCreate(t *testing.T) {
	svc, store := newSegmentService(t)

	var stored *db.NetworkSegment
	store.EXPECT().CreateSegment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, seg *db.NetworkSegment) error {
			stored = seg
			return nil
		})

	seg, err := svc.Create(context.Background(), CreateSegmentInput{
		Name: "  office  ",
		CIDR: "10.0.0.7/24",
	})
	require.NoError(t, err)
	assert.Same(t, stored, seg)
	assert.Equal(t, "office", seg.Name)
	assert.Equal(t, "10.0.0.0/24", seg.CIDR)
	assert.NotEmpty(t, seg.ID)
	assert.False(t, seg.CreatedAt.IsZero())
}

func TestSegmentServiceCreateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input CreateSegmentInput
		code  errors.ErrorCode
	}{
		{"missing name", CreateSegmentInput{CIDR: "10.0.0.0/24"}, errors.CodeValidation},
		{"missing cidr", CreateSegmentInput{Name: "lan"}, errors.CodeValidation},
		{"not a cidr", CreateSegmentInput{Name: "lan", CIDR: "10.0.0.0"}, errors.CodeInvalidCIDR},
		{"ipv6", CreateSegmentInput{Name: "lan", CIDR: "fd00::/64"}, errors.CodeInvalidCIDR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newSegmentService(t)
			_, err := svc.Create(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestSegmentServiceCreateConflict(t *testing.T) {
	svc, store := newSegmentService(t)
	store.EXPECT().CreateSegment(gomock.Any(), gomock.Any()).
		Return(errors.ErrConflict("segment already exists", "10.0.0.0/24"))

	_, err := svc.Create(context.Background(), CreateSegmentInput{Name: "lan", CIDR: "10.0.0.0/24"})
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
}

func TestSegmentServiceDetail(t *testing.T) {
	svc, store := newSegmentService(t)
	seg := &db.NetworkSegment{ID: "s1", Name: "lan", CIDR: "10.0.0.0/24"}
	store.EXPECT().GetSegment(gomock.Any(), "s1").Return(seg, nil)
	store.EXPECT().LoadHostRecords(gomock.Any(), "s1").Return([]db.HostRecord{
		{IP: "10.0.0.10", IsActive: true},
		{IP: "10.0.0.2"},
		{IP: "10.0.0.9", IsActive: true},
	}, nil)

	detail, err := svc.Detail(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "lan", detail.Segment.Name)
	assert.Equal(t, 3, detail.TotalIPs)
	assert.Equal(t, 2, detail.ActiveIPs)
	assert.Equal(t, 1, detail.InactiveIPs)

	ips := make([]string, len(detail.Hosts))
	for i, h := range detail.Hosts {
		ips[i] = h.IP
	}
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.9", "10.0.0.10"}, ips)
}

func TestSegmentServiceDetailNotFound(t *testing.T) {
	svc, store := newSegmentService(t)
	store.EXPECT().GetSegment(gomock.Any(), "nope").Return(nil, errors.ErrNotFound("segment", "nope"))

	_, err := svc.Detail(context.Background(), "nope")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestSegmentServiceStats(t *testing.T) {
	svc, store := newSegmentService(t)
	store.EXPECT().LoadSegments(gomock.Any()).Return([]db.NetworkSegment{{ID: "a"}, {ID: "b"}}, nil)
	store.EXPECT().LoadHostRecords(gomock.Any(), "a").Return([]db.HostRecord{
		{IP: "10.0.0.1", IsActive: true}, {IP: "10.0.0.2"},
	}, nil)
	store.EXPECT().LoadHostRecords(gomock.Any(), "b").Return([]db.HostRecord{
		{IP: "10.1.0.1", IsActive: true},
	}, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, db.Stats{TotalNetworks: 2, TotalIPs: 3, ActiveIPs: 2, InactiveIPs: 1}, *stats)
}

func TestSegmentServiceDelete(t *testing.T) {
	svc, store := newSegmentService(t)
	store.EXPECT().DeleteSegment(gomock.Any(), "s1").Return(nil)
	store.EXPECT().DeleteSegment(gomock.Any(), "s2").Return(errors.ErrNotFound("segment", "s2"))

	require.NoError(t, svc.Delete(context.Background(), "s1"))
	assert.True(t, errors.IsCode(svc.Delete(context.Background(), "s2"), errors.CodeNotFound))
}
