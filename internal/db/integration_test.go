package db

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run against a real PostgreSQL when NETSWEEP_TEST_DB_NAME
// is set. Connection settings come from the NETSWEEP_TEST_DB_* variables.

const integrationConnectTimeout = 5 * time.Second

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testDatabaseConfig(t *testing.T) *Config {
	t.Helper()

	name := os.Getenv("NETSWEEP_TEST_DB_NAME")
	if name == "" || testing.Short() {
		t.Skip("NETSWEEP_TEST_DB_NAME not set, skipping PostgreSQL integration test")
	}

	cfg := DefaultConfig()
	cfg.Host = envOrDefault("NETSWEEP_TEST_DB_HOST", cfg.Host)
	if port, err := strconv.Atoi(os.Getenv("NETSWEEP_TEST_DB_PORT")); err == nil {
		cfg.Port = port
	}
	cfg.Database = name
	cfg.Username = envOrDefault("NETSWEEP_TEST_DB_USER", "netsweep_test")
	cfg.Password = envOrDefault("NETSWEEP_TEST_DB_PASSWORD", "")
	return &cfg
}

func connectTestDatabase(t *testing.T) *PostgresStore {
	t.Helper()
	cfg := testDatabaseConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), integrationConnectTimeout)
	defer cancel()

	store, err := Connect(ctx, cfg)
	if err != nil {
		t.Skipf("PostgreSQL not reachable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresStoreIntegration(t *testing.T) {
	store := connectTestDatabase(t)
	ctx := context.Background()

	seg := &NetworkSegment{
		ID:          uuid.NewString(),
		Name:        "integration",
		CIDR:        "198.18.77.0/29",
		Description: "created by TestPostgresStoreIntegration",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.CreateSegment(ctx, seg))
	t.Cleanup(func() { _ = store.DeleteSegment(context.Background(), seg.ID) })

	t.Run("duplicate cidr", func(t *testing.T) {
		dup := *seg
		dup.ID = uuid.NewString()
		err := store.CreateSegment(ctx, &dup)
		require.Error(t, err)
	})

	t.Run("get segment", func(t *testing.T) {
		got, err := store.GetSegment(ctx, seg.ID)
		require.NoError(t, err)
		assert.Equal(t, seg.Name, got.Name)
		assert.Equal(t, seg.CIDR, got.CIDR)
		assert.WithinDuration(t, seg.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("host records replace", func(t *testing.T) {
		checked := time.Now().UTC().Truncate(time.Microsecond)
		hostname := "gw.lab"
		accuracy := 93
		records := []HostRecord{
			{IP: "198.18.77.2", LastChecked: checked},
			{
				IP:           "198.18.77.1",
				IsActive:     true,
				LastChecked:  checked,
				Hostname:     &hostname,
				OSAccuracy:   &accuracy,
				OpenPorts:    PortList{443, 22, 22},
				Services:     ServiceMap{22: "ssh", 443: "https"},
				PortsScanned: true,
			},
		}
		require.NoError(t, store.SaveHostRecords(ctx, seg.ID, records))

		got, err := store.LoadHostRecords(ctx, seg.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "198.18.77.1", got[0].IP)
		assert.True(t, got[0].IsActive)
		assert.Equal(t, PortList{22, 443}, got[0].OpenPorts)
		assert.Equal(t, "ssh", got[0].Services[22])
		require.NotNil(t, got[0].Hostname)
		assert.Equal(t, hostname, *got[0].Hostname)
		assert.False(t, got[1].IsActive)
		assert.Empty(t, got[1].OpenPorts)

		require.NoError(t, store.SaveHostRecords(ctx, seg.ID, records[:1]))
		got, err = store.LoadHostRecords(ctx, seg.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "198.18.77.2", got[0].IP)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, store.DeleteSegment(ctx, seg.ID))

		_, err := store.GetSegment(ctx, seg.ID)
		require.Error(t, err)

		got, err := store.LoadHostRecords(ctx, seg.ID)
		require.NoError(t, err)
		assert.Empty(t, got)

		require.Error(t, store.DeleteSegment(ctx, seg.ID))
	})
}
