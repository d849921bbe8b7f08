package wal_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

type entry struct {
	Seq    int    `json:"seq"`
	Amount string `json:"amount"`
}

func TestWriteAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.wal")

	w, err := wal.NewWAL(path)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Write(entry{Seq: i, Amount: "10.50"}))
	}
	require.NoError(t, w.Close())

	reopened, err := wal.NewWAL(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, path, reopened.Path())

	var got []entry
	err = reopened.ReadAll(func(raw []byte) error {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Seq)
	assert.Equal(t, 3, got[2].Seq)

	// 讀取後繼續寫入仍然附加在檔尾
	require.NoError(t, reopened.Write(entry{Seq: 4}))
	count := 0
	require.NoError(t, reopened.ReadAll(func([]byte) error { count++; return nil }))
	assert.Equal(t, 4, count)
}

func TestReadAllEmptyFile(t *testing.T) {
	w, err := wal.NewWAL(filepath.Join(t.TempDir(), "empty.wal"))
	require.NoError(t, err)
	defer w.Close()

	called := false
	require.NoError(t, w.ReadAll(func([]byte) error { called = true; return nil }))
	assert.False(t, called)
}

func TestReadAllStopsOnCallbackError(t *testing.T) {
	w, err := wal.NewWAL(filepath.Join(t.TempDir(), "a.wal"))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Write(entry{Seq: 1}))
	require.NoError(t, w.Write(entry{Seq: 2}))

	stop := errors.New("stop")
	calls := 0
	err = w.ReadAll(func([]byte) error { calls++; return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReadAllCorruptedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.wal")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\n{\"seq\":"), 0o644))

	w, err := wal.NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	err = w.ReadAll(func([]byte) error { return nil })
	assert.Error(t, err)
}
