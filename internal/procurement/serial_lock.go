package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/receiving/internal/procurement/grn"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SerialLock serialises verification of the same serial across requests.
// A nil lock admits every caller.
type SerialLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSerialLock builds the lock; ttl bounds how long a crashed holder blocks.
func NewSerialLock(client *redis.Client, ttl time.Duration) *SerialLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SerialLock{client: client, ttl: ttl}
}

func serialLockKey(grnID, skuID int64, serial string) string {
	return fmt.Sprintf("grn:%d:sku:%d:serial:%s", grnID, skuID, serial)
}

// Acquire takes the lock for serial or fails with VerificationInFlight. The
// returned release func is safe to call once the verification finished.
func (l *SerialLock) Acquire(ctx context.Context, grnID, skuID int64, skuCode, serial string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := serialLockKey(grnID, skuID, serial)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &grn.Error{
			Kind:    grn.KindVerificationInFlight,
			SKU:     skuCode,
			Message: fmt.Sprintf("serial %s is already being verified for SKU %s", serial, skuCode),
		}
	}
	return func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}, nil
}
