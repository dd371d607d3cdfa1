package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSQLMigrations_Embedded(t *testing.T) {
	require.NoError(t, LoadSQLMigrations(Files))

	ids := pending(nil)
	assert.Contains(t, ids, "0001_glucose_value_check")
	assert.Contains(t, ids, "0002_device_registrations_auto_sync_idx")
	assert.Contains(t, ids, "0003_glucose_records_unique_user_time")

	content, err := Files.ReadFile("sql/0003_glucose_records_unique_user_time.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE UNIQUE INDEX IF NOT EXISTS uq_glucose_records_user_measured_at")
}

func TestPending_SkipsExecutedAndSorts(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/9002_b.sql":   {Data: []byte("SELECT 2;")},
		"sql/9001_a.sql":   {Data: []byte("SELECT 1;")},
		"sql/README.md":    {Data: []byte("not a migration")},
		"sql/nested/x.sql": {Data: []byte("SELECT 3;")},
	}
	require.NoError(t, LoadSQLMigrations(fsys))

	ids := pending(map[string]bool{"9001_a": true})
	assert.NotContains(t, ids, "9001_a")
	assert.NotContains(t, ids, "README")
	assert.Contains(t, ids, "9002_b")
	assert.IsNonDecreasing(t, ids)
}

func TestLoadSQLMigrations_MissingDir(t *testing.T) {
	assert.Error(t, LoadSQLMigrations(fstest.MapFS{}))
}
