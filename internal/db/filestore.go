package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/anstrom/netsweep/internal/errors"
)

const (
	segmentsFile   = "networks.json"
	hostStatusFile = "ip_status.json"

	dataDirPerm  = 0750
	dataFilePerm = 0600
)

// FileStore keeps segments and host records as two JSON documents in a
// data directory. Host records are a map keyed by segment id.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the data directory and seeds empty documents.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, dataDirPerm); err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeStorageIO, "Failed to create data directory", err)
	}

	s := &FileStore{dir: dir}
	seeds := map[string][]byte{
		segmentsFile:   []byte("[]"),
		hostStatusFile: []byte("{}"),
	}
	for name, content := range seeds {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, content, dataFilePerm); err != nil {
				return nil, errors.WrapDatabaseError(errors.CodeStorageIO, "Failed to seed data file", err)
			}
		}
	}
	return s, nil
}

// Ping checks the data directory is still reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return errors.WrapDatabaseError(errors.CodeStorageIO, "Data directory unavailable", err)
	}
	return nil
}

// Close is a no-op; every write is flushed before returning.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readJSON(name string, dest interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return errors.WrapDatabaseError(errors.CodeStorageIO, "Failed to read "+name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.WrapDatabaseError(errors.CodeStorageIO, "Corrupt data file "+name, err)
	}
	return nil
}

// writeJSON replaces the file atomically so readers never see a partial document.
func (s *FileStore) writeJSON(name string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return errors.WrapDatabaseError(errors.CodeStorageIO, "Failed to write "+name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.WrapDatabaseError(errors.CodeStorageIO, "Failed to write "+name, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapDatabaseError(errors.CodeStorageIO, "Failed to write "+name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return errors.WrapDatabaseError(errors.CodeStorageIO, "Failed to replace "+name, err)
	}
	return nil
}

func (s *FileStore) loadSegments() ([]NetworkSegment, error) {
	segments := []NetworkSegment{}
	if err := s.readJSON(segmentsFile, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

func (s *FileStore) loadHostStatus() (map[string][]HostRecord, error) {
	status := map[string][]HostRecord{}
	if err := s.readJSON(hostStatusFile, &status); err != nil {
		return nil, err
	}
	return status, nil
}

// LoadSegments returns all segments in insertion order.
func (s *FileStore) LoadSegments(ctx context.Context) ([]NetworkSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadSegments()
}

// GetSegment returns one segment by id.
func (s *FileStore) GetSegment(ctx context.Context, id string) (*NetworkSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segments, err := s.loadSegments()
	if err != nil {
		return nil, err
	}
	for i := range segments {
		if segments[i].ID == id {
			return &segments[i], nil
		}
	}
	return nil, errors.ErrNotFound("segment", id)
}

// CreateSegment appends a segment. Ids and CIDRs must be unique.
func (s *FileStore) CreateSegment(ctx context.Context, segment *NetworkSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	segments, err := s.loadSegments()
	if err != nil {
		return err
	}
	for _, existing := range segments {
		if existing.CIDR == segment.CIDR {
			return errors.ErrConflict("segment already exists", segment.CIDR)
		}
		if existing.ID == segment.ID {
			return errors.ErrConflict("segment id already in use", segment.ID)
		}
	}
	return s.writeJSON(segmentsFile, append(segments, *segment))
}

// DeleteSegment removes a segment and its host records.
func (s *FileStore) DeleteSegment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	segments, err := s.loadSegments()
	if err != nil {
		return err
	}
	kept := segments[:0]
	for _, seg := range segments {
		if seg.ID != id {
			kept = append(kept, seg)
		}
	}
	if len(kept) == len(segments) {
		return errors.ErrNotFound("segment", id)
	}
	if err := s.writeJSON(segmentsFile, kept); err != nil {
		return err
	}

	status, err := s.loadHostStatus()
	if err != nil {
		return err
	}
	if _, ok := status[id]; ok {
		delete(status, id)
		return s.writeJSON(hostStatusFile, status)
	}
	return nil
}

// LoadHostRecords returns the stored records of a segment, empty if the
// segment was never swept.
func (s *FileStore) LoadHostRecords(ctx context.Context, segmentID string) ([]HostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, err := s.loadHostStatus()
	if err != nil {
		return nil, err
	}
	records := status[segmentID]
	if records == nil {
		return []HostRecord{}, nil
	}
	return records, nil
}

// SaveHostRecords replaces the records of a segment.
func (s *FileStore) SaveHostRecords(ctx context.Context, segmentID string, records []HostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.loadHostStatus()
	if err != nil {
		return err
	}

	out := make([]HostRecord, len(records))
	copy(out, records)
	for i := range out {
		out[i].Normalize()
	}
	SortByIP(out)

	status[segmentID] = out
	return s.writeJSON(hostStatusFile, status)
}
