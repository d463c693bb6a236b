package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReadWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("read missing path", func(t *testing.T) {
		_, err := s.Read(ctx, "users/alice/profile")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("write then read", func(t *testing.T) {
		err := s.AtomicUpdate(ctx, map[string][]byte{
			"users/alice/profile": []byte(`{"name":"Alice"}`),
		})
		require.NoError(t, err)

		val, err := s.Read(ctx, "users/alice/profile")
		require.NoError(t, err)
		assert.Equal(t, `{"name":"Alice"}`, string(val))
	})

	t.Run("nil value deletes", func(t *testing.T) {
		err := s.AtomicUpdate(ctx, map[string][]byte{"users/alice/profile": nil})
		require.NoError(t, err)

		_, err = s.Read(ctx, "users/alice/profile")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("read returns a copy", func(t *testing.T) {
		require.NoError(t, s.AtomicUpdate(ctx, map[string][]byte{"k": []byte("abc")}))

		val, err := s.Read(ctx, "k")
		require.NoError(t, err)
		val[0] = 'z'

		again, err := s.Read(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(again))
	})
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.AtomicUpdate(ctx, map[string][]byte{
		"users/alice/loans/l1":       []byte(`1`),
		"users/alice/loans/l2":       []byte(`2`),
		"users/alice/loans/l1/extra": []byte(`3`),
		"users/alice/cashIn/c1":      []byte(`4`),
		"users/bob/loans/l9":         []byte(`5`),
	}))

	t.Run("direct children only", func(t *testing.T) {
		children, err := s.List(ctx, "users/alice/loans")
		require.NoError(t, err)
		assert.Len(t, children, 2)
		assert.Contains(t, children, "l1")
		assert.Contains(t, children, "l2")
	})

	t.Run("empty for missing parent", func(t *testing.T) {
		children, err := s.List(ctx, "users/carol/loans")
		require.NoError(t, err)
		assert.Empty(t, children)
	})
}

func TestMemoryStoreTransact(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.AtomicUpdate(ctx, map[string][]byte{"counter": []byte("1")}))

	t.Run("reads current values and applies updates", func(t *testing.T) {
		err := s.Transact(ctx, []string{"counter", "missing"}, func(current map[string][]byte) (map[string][]byte, error) {
			assert.Equal(t, "1", string(current["counter"]))
			_, ok := current["missing"]
			assert.False(t, ok)
			return map[string][]byte{"counter": []byte("2")}, nil
		})
		require.NoError(t, err)

		val, err := s.Read(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, "2", string(val))
	})

	t.Run("fn error aborts without writing", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.Transact(ctx, []string{"counter"}, func(current map[string][]byte) (map[string][]byte, error) {
			return map[string][]byte{"counter": []byte("999")}, boom
		})
		assert.ErrorIs(t, err, boom)

		val, err := s.Read(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, "2", string(val))
	})

	t.Run("fn may write outside the watched set", func(t *testing.T) {
		err := s.Transact(ctx, []string{"counter"}, func(current map[string][]byte) (map[string][]byte, error) {
			return map[string][]byte{"audit/a1": []byte("entry")}, nil
		})
		require.NoError(t, err)

		val, err := s.Read(ctx, "audit/a1")
		require.NoError(t, err)
		assert.Equal(t, "entry", string(val))
	})
}

func TestMemoryStoreNewKey(t *testing.T) {
	s := NewMemoryStore()

	k1 := s.NewKey("users/alice/loans")
	k2 := s.NewKey("users/alice/loans")
	assert.NotEmpty(t, k1)
	assert.NotEqual(t, k1, k2)
}
