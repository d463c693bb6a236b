package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogetcash/backend/internal/config"
)

func newTestQRService(t *testing.T) (*QRService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.LedgerConfig{QRCodeTTL: 5 * time.Minute}
	return NewQRService(client, cfg), mr
}

func TestQRService_GenerateAndProcess(t *testing.T) {
	ctx := context.Background()
	service, mr := newTestQRService(t)

	code, image, err := service.GenerateCollectionCode(ctx, "jeysi", "loan-1", dec("350"))
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.NotEmpty(t, image)

	t.Run("code embeds the collection details", func(t *testing.T) {
		raw, err := base64.URLEncoding.DecodeString(code)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "jeysi", payload["user"])
		assert.Equal(t, "loan-1", payload["loanId"])
		assert.NotEmpty(t, payload["nonce"])
	})

	t.Run("processing resolves and consumes the code", func(t *testing.T) {
		result, err := service.ProcessCollectionCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "jeysi", result["user"])
		assert.Equal(t, "350", result["amount"])

		// Single use.
		_, err = service.ProcessCollectionCode(ctx, code)
		assert.Error(t, err)
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		code, _, err := service.GenerateCollectionCode(ctx, "jeysi", "", dec("100"))
		require.NoError(t, err)

		mr.FastForward(6 * time.Minute)

		_, err = service.ProcessCollectionCode(ctx, code)
		assert.Error(t, err)
	})
}
