package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeSeries(t *testing.T, s *FileStorage, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, s.Store(Document{"k": float64(i)}))
	}
}

func TestStoreAndLoadAllFormats(t *testing.T) {
	for _, name := range []string{"json", "jsonp", "binjson"} {
		t.Run(name, func(t *testing.T) {
			format, err := ParseFormat(name)
			require.NoError(t, err)
			s := NewFactory(t.TempDir(), 3, format).Create("BTCUSDT")

			doc := Document{"val": -1.25, "k": 100.0, "p": 110.0, "pos": 1.0}
			require.NoError(t, s.Store(doc))

			loaded, err := s.Load()
			require.NoError(t, err)
			assert.Equal(t, doc, loaded)
		})
	}
}

func TestFactoryNamesFilesByFormat(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "ETHUSDT.json"), NewFactory(dir, 2, JSONPretty).Create("ETHUSDT").Path())
	assert.Equal(t, filepath.Join(dir, "ETHUSDT.bin"), NewFactory(dir, 2, BinJSON).Create("ETHUSDT").Path())

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestLoadWithoutSnapshot(t *testing.T) {
	s := NewFileStorage(filepath.Join(t.TempDir(), "none.json"), 3, JSON)
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRotationKeepsConfiguredVersions(t *testing.T) {
	s := NewFileStorage(filepath.Join(t.TempDir(), "pair.json"), 3, JSON)
	storeSeries(t, s, 5)

	for i, want := range []float64{5, 4, 3} {
		raw, err := os.ReadFile(s.versionPath(i))
		require.NoError(t, err)
		var snap snapshot
		require.NoError(t, json.Unmarshal(raw, &snap))
		assert.Equal(t, want, snap.Data["k"], "version %d", i)
		assert.Equal(t, uint64(want), snap.Seq)
		_, err = uuid.Parse(snap.ID)
		assert.NoError(t, err)
	}
	_, err := os.Stat(s.versionPath(3))
	assert.True(t, os.IsNotExist(err), "oldest version should have been dropped")

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp files left behind")
}

func TestLoadSkipsCorruptLatest(t *testing.T) {
	for _, format := range []Format{JSON, BinJSON} {
		t.Run(fmt.Sprint(format), func(t *testing.T) {
			s := NewFileStorage(filepath.Join(t.TempDir(), "pair"), 3, format)
			storeSeries(t, s, 3)

			// Simulate a torn write of the newest version.
			raw, err := os.ReadFile(s.Path())
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(s.Path(), raw[:len(raw)/2], 0o644))

			loaded, err := s.Load()
			require.NoError(t, err)
			assert.Equal(t, 2.0, loaded["k"])
		})
	}
}

func TestLoadFallsBackWhenLatestMissing(t *testing.T) {
	s := NewFileStorage(filepath.Join(t.TempDir(), "pair.json"), 2, JSON)
	storeSeries(t, s, 2)
	require.NoError(t, os.Remove(s.Path()))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 1.0, loaded["k"])

	// The next write continues the sequence after the restored version.
	require.NoError(t, s.Store(Document{"k": 9.0}))
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var snap snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, uint64(2), snap.Seq)
}

func TestAllVersionsCorrupt(t *testing.T) {
	s := NewFileStorage(filepath.Join(t.TempDir(), "pair.json"), 2, JSON)
	storeSeries(t, s, 2)
	for i := 0; i < 2; i++ {
		require.NoError(t, os.WriteFile(s.versionPath(i), []byte("{"), 0o644))
	}

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestEnvelopeWithoutDataIsRejected(t *testing.T) {
	s := NewFileStorage(filepath.Join(t.TempDir(), "pair.json"), 1, JSON)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"id":"x","seq":1}`), 0o644))

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func versionValue(t *testing.T, path string) float64 {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	return snap.Data["k"].(float64)
}

func TestInterruptedStoreKeepsEveryVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pair.json")
	s := NewFileStorage(path, 3, JSON)
	storeSeries(t, s, 3)

	// Stop after the rotation, before the staged version reaches the latest slot.
	require.NoError(t, s.stage(Document{"k": 4.0}))
	require.NoError(t, s.rotate())
	_, err := os.Stat(s.Path())
	require.True(t, os.IsNotExist(err))

	assert.Equal(t, 4.0, versionValue(t, s.stagedPath()))
	assert.Equal(t, 3.0, versionValue(t, s.versionPath(1)))
	assert.Equal(t, 2.0, versionValue(t, s.versionPath(2)))

	restarted := NewFileStorage(path, 3, JSON)
	doc, err := restarted.Load()
	require.NoError(t, err)
	assert.Equal(t, 4.0, doc["k"])

	require.NoError(t, restarted.Store(Document{"k": 5.0}))
	for i, want := range []float64{5, 4, 3} {
		assert.Equal(t, want, versionValue(t, restarted.versionPath(i)), "version %d", i)
	}
	_, err = os.Stat(restarted.stagedPath())
	assert.True(t, os.IsNotExist(err))
}
