package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
}

func TestStoreSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s := NewStore(dir)

	require.NoError(t, s.Save("price_AAPL", entry{Ticker: "AAPL", Price: 153}))
	assert.FileExists(t, filepath.Join(dir, "price_AAPL.json"))

	var got entry
	require.NoError(t, s.Load("price_AAPL", &got))
	assert.Equal(t, entry{Ticker: "AAPL", Price: 153}, got)

	require.NoError(t, s.Save("price_AAPL", entry{Ticker: "AAPL", Price: 154}))
	require.NoError(t, s.Load("price_AAPL", &got))
	assert.Equal(t, 154.0, got.Price)

	raw, err := s.LoadRaw("price_AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticker":"AAPL","price":154}`, string(raw))
}

func TestStoreMissingKey(t *testing.T) {
	s := NewStore(t.TempDir())

	var got entry
	require.ErrorIs(t, s.Load("analysis_ZZZZ", &got), ErrNotFound)
}

func TestStoreRejectsUnsafeKeys(t *testing.T) {
	s := NewStore(t.TempDir())

	for _, key := range []string{"", "../etc/passwd", "a/b", "..", "price AAPL"} {
		require.ErrorIs(t, s.Save(key, entry{}), ErrInvalidKey, key)
	}
}

func TestStoreKeys(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"))
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Save("price_MSFT", entry{}))
	require.NoError(t, s.Save("analysis_AAPL", entry{}))

	keys, err = s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"analysis_AAPL", "price_MSFT"}, keys)
}
