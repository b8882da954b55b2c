package db

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netsweep/internal/errors"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewPostgresStore(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestSanitizeDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"no rows", sql.ErrNoRows, errors.CodeNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, errors.CodeConflict},
		{"foreign key", &pq.Error{Code: "23503"}, errors.CodeNotFound},
		{"bad input", &pq.Error{Code: "22P02"}, errors.CodeValidation},
		{"canceled", &pq.Error{Code: "57014"}, errors.CodeCanceled},
		{"admin shutdown", &pq.Error{Code: "57P01"}, errors.CodeDatabaseConnection},
		{"other", assert.AnError, errors.CodeDatabaseQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sanitizeDBError("op", tt.err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}

	assert.NoError(t, sanitizeDBError("op", nil))
}

func TestSanitizeDBErrorHidesDetails(t *testing.T) {
	err := sanitizeDBError("create segment", &pq.Error{
		Code:    "23505",
		Message: `duplicate key value violates unique constraint "segments_cidr_key"`,
	})
	assert.NotContains(t, err.Error(), "segments_cidr_key")
}

func TestDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database = "netsweep"
	cfg.Username = "sweeper"
	cfg.Password = "secret"

	assert.Equal(t,
		"host=localhost port=5432 dbname=netsweep user=sweeper password=secret sslmode=disable",
		cfg.DSN())
}

func TestPostgresStoreGetSegment(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	query := regexp.QuoteMeta(`SELECT id, name, cidr, description, created_at FROM segments WHERE id = $1`)
	mock.ExpectQuery(query).
		WithArgs("seg-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "cidr", "description", "created_at"}).
			AddRow("seg-1", "office", "192.168.1.0/24", "", created))
	mock.ExpectQuery(query).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	seg, err := store.GetSegment(context.Background(), "seg-1")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.0/24", seg.CIDR)
	assert.True(t, seg.CreatedAt.Equal(created))

	_, err = store.GetSegment(context.Background(), "missing")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreateSegmentConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO segments").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateSegment(context.Background(), &NetworkSegment{ID: "seg-2", CIDR: "10.0.0.0/24"})
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDeleteSegment(t *testing.T) {
	store, mock := newMockStore(t)
	query := regexp.QuoteMeta(`DELETE FROM segments WHERE id = $1`)

	mock.ExpectExec(query).WithArgs("seg-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("seg-1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.DeleteSegment(context.Background(), "seg-1"))
	err := store.DeleteSegment(context.Background(), "seg-1")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadHostRecords(t *testing.T) {
	store, mock := newMockStore(t)
	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	columns := []string{"ip", "is_active", "last_checked", "hostname", "mac_address", "vendor",
		"os", "os_accuracy", "open_ports", "services", "ports_scanned"}
	mock.ExpectQuery("SELECT host\\(ip\\) AS ip").
		WithArgs("seg-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("10.0.0.1", true, checked, "gw.lan", nil, nil, nil, nil,
				[]byte("[22,80]"), []byte(`{"22":"ssh","80":"http"}`), true).
			AddRow("10.0.0.2", false, checked, nil, nil, nil, nil, nil,
				[]byte("[]"), []byte("{}"), false))

	records, err := store.LoadHostRecords(context.Background(), "seg-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "10.0.0.1", records[0].IP)
	require.NotNil(t, records[0].Hostname)
	assert.Equal(t, "gw.lan", *records[0].Hostname)
	assert.Equal(t, PortList{22, 80}, records[0].OpenPorts)
	assert.Equal(t, "ssh", records[0].Services[22])
	assert.Nil(t, records[1].Hostname)
	assert.False(t, records[1].IsActive)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveHostRecords(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM host_records WHERE segment_id = $1`)).
		WithArgs("seg-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO host_records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO host_records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.SaveHostRecords(context.Background(), "seg-1", []HostRecord{
		{IP: "10.0.0.1", IsActive: true, LastChecked: now},
		{IP: "10.0.0.2", LastChecked: now},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveHostRecordsRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM host_records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO host_records").WillReturnError(&pq.Error{Code: "22P02"})
	mock.ExpectRollback()

	err := store.SaveHostRecords(context.Background(), "seg-1", []HostRecord{{IP: "bogus"}})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}
