package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/gogetcash/backend/internal/config"
)

// QRService issues single-use collection codes. A borrower scans the code to
// see what they owe; the payload lives in Redis until the TTL or first scan,
// whichever comes first.
type QRService struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewQRService(redisClient *redis.Client, cfg *config.LedgerConfig) *QRService {
	ttl := cfg.QRCodeTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QRService{redis: redisClient, ttl: ttl}
}

func (s *QRService) GenerateCollectionCode(ctx context.Context, user, loanID string, amount decimal.Decimal) (string, string, error) {
	payload := map[string]any{
		"user":      user,
		"loanId":    loanID,
		"amount":    amount,
		"timestamp": time.Now().UnixMilli(),
		"nonce":     s.generateNonce(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("qr:%s", code)
	if err := s.redis.Set(ctx, key, jsonData, s.ttl).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	image := base64.StdEncoding.EncodeToString(buf.Bytes())

	return code, image, nil
}

// ProcessCollectionCode consumes a scanned code. Codes are single-use: the
// Redis entry is deleted on first successful read.
func (s *QRService) ProcessCollectionCode(ctx context.Context, code string) (map[string]any, error) {
	key := fmt.Sprintf("qr:%s", code)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired collection code")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return result, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
