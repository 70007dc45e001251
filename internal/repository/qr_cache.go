package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

// QRCache keeps customer QR codes in Redis.  Expiry is handled by the
// key TTL, so an expired code is indistinguishable from an unknown one.
type QRCache struct {
	rdb    *redis.Client
	prefix string
}

// NewQRCache returns a QRCache using rdb.
func NewQRCache(rdb *redis.Client) *QRCache {
	return &QRCache{rdb: rdb, prefix: "qr:"}
}

func (c *QRCache) key(code string) string { return c.prefix + code }

// Save stores qr for ttl.
func (c *QRCache) Save(ctx context.Context, qr model.QRCode, ttl time.Duration) error {
	b, err := json.Marshal(qr)
	if err != nil {
		return err
	}
	return c.rdb.SetEx(ctx, c.key(qr.Code), b, ttl).Err()
}

// Load returns the code or ErrNotFound once it has expired.
func (c *QRCache) Load(ctx context.Context, code string) (model.QRCode, error) {
	var qr model.QRCode
	b, err := c.rdb.Get(ctx, c.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return qr, ErrNotFound
	}
	if err != nil {
		return qr, err
	}
	err = json.Unmarshal(b, &qr)
	return qr, err
}
