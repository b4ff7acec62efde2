package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vibration-diag/internal/indicator"
	"vibration-diag/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store.db)
	_, err = os.Stat(filepath.Join(tempDir, dbFileName))
	assert.NoError(t, err, "database file was not created")
}

func TestNew_NestedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	store, err := New(path)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	// closing twice is harmless
	assert.NoError(t, store.Close())
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	assert.NoError(t, store.Close())
}

func TestStoreIndicators_RoundTrip(t *testing.T) {
	store := newStore(t)

	stamp := signal.Stamp{Size: 128, ModTime: time.Unix(1700000000, 0).UTC()}
	ind := indicator.Indicators{Mean: 0.1, RMS: 2, Peak: 5, Kurtosis: 1.5}

	require.NoError(t, store.Save("healthy", "/data/healthy/acc_00001.csv", stamp, ind))

	record, found, err := store.GetIndicators("healthy", "/data/healthy/acc_00001.csv")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ind, record.Indicators)
	assert.Equal(t, stamp.Size, record.Stamp.Size)
	assert.True(t, stamp.ModTime.Equal(record.Stamp.ModTime))
	assert.False(t, record.StoredAt.IsZero())

	_, found, err = store.GetIndicators("faulty", "/data/healthy/acc_00001.csv")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Lookup(t *testing.T) {
	store := newStore(t)

	stamp := signal.Stamp{Size: 64, ModTime: time.Unix(1700000000, 0)}
	ind := indicator.Indicators{Energy: 42}
	require.NoError(t, store.Save("c", "p", stamp, ind))

	got, ok := store.Lookup("c", "p", stamp)
	require.True(t, ok)
	assert.Equal(t, 42.0, got.Energy)

	_, ok = store.Lookup("c", "p", signal.Stamp{Size: 65, ModTime: stamp.ModTime})
	assert.False(t, ok, "size change must miss")

	_, ok = store.Lookup("c", "p", signal.Stamp{Size: 64, ModTime: stamp.ModTime.Add(time.Second)})
	assert.False(t, ok, "mtime change must miss")

	_, ok = store.Lookup("c", "other", stamp)
	assert.False(t, ok)
}

func TestStore_LookupLayout(t *testing.T) {
	store := newStore(t)

	stamp := signal.Stamp{Size: 64, ModTime: time.Unix(1700000000, 0), Layout: `column=1 separator=','`}
	require.NoError(t, store.Save("c", "p", stamp, indicator.Indicators{Energy: 42}))

	_, ok := store.Lookup("c", "p", stamp)
	assert.True(t, ok)

	other := stamp
	other.Layout = `column=0 separator=','`
	_, ok = store.Lookup("c", "p", other)
	assert.False(t, ok, "column change must miss")

	other.Layout = `column=1 separator=';'`
	_, ok = store.Lookup("c", "p", other)
	assert.False(t, ok, "separator change must miss")
}

func TestStore_ClassRecords(t *testing.T) {
	store := newStore(t)

	for i, loc := range []string{"b.csv", "a.csv", "c.csv"} {
		require.NoError(t, store.Save("gear", loc, signal.Stamp{Size: int64(i)}, indicator.Indicators{Peak: float64(i)}))
	}
	require.NoError(t, store.Save("gearbox", "z.csv", signal.Stamp{}, indicator.Indicators{}))

	records, err := store.ClassRecords("gear")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "a.csv", records[0].Location)
	assert.Equal(t, "b.csv", records[1].Location)
	assert.Equal(t, "c.csv", records[2].Location)

	records, err = store.ClassRecords("none")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_Overwrite(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Save("c", "p", signal.Stamp{Size: 1}, indicator.Indicators{Peak: 1}))
	require.NoError(t, store.Save("c", "p", signal.Stamp{Size: 2}, indicator.Indicators{Peak: 2}))

	records, err := store.ClassRecords("c")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2.0, records[0].Indicators.Peak)
}
