/**
 * @description
 * Redis-backed one-time-password store for withdrawal verification. Codes are
 * bcrypt-hashed at rest with a bounded TTL; verification attempts are counted
 * with a Lua script so the increment and expiry set are atomic across
 * replicas.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// OTPStore issues and verifies withdrawal OTPs. A successful verification
// consumes the code.
type OTPStore interface {
	Issue(ctx context.Context, userID uuid.UUID) (code string, err error)
	Verify(ctx context.Context, userID uuid.UUID, code string) error
}

const otpIssueCooldown = time.Minute

var otpAttemptScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisOTPStore implements OTPStore over redis.
type RedisOTPStore struct {
	client      redis.UniversalClient
	prefix      string
	ttl         time.Duration
	maxAttempts int
}

func NewRedisOTPStore(client redis.UniversalClient, prefix string, ttl time.Duration, maxAttempts int) *RedisOTPStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "wallet:otp"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RedisOTPStore{
		client:      client,
		prefix:      trimmedPrefix,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

func (r *RedisOTPStore) codeKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:code:%s", r.prefix, userID)
}

func (r *RedisOTPStore) attemptKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:attempts:%s", r.prefix, userID)
}

func (r *RedisOTPStore) cooldownKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:cooldown:%s", r.prefix, userID)
}

// Issue generates a fresh 6-digit code, overwriting any outstanding one, and
// resets the attempt counter. At most one code per user per cooldown window.
func (r *RedisOTPStore) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	allowed, err := r.client.SetNX(ctx, r.cooldownKey(userID), "1", otpIssueCooldown).Result()
	if err != nil {
		return "", fmt.Errorf("otp cooldown check: %w", err)
	}
	if !allowed {
		return "", ErrOTPThrottled
	}

	code, err := generateNumericCode(6)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	if err := r.client.Set(ctx, r.codeKey(userID), string(hash), r.ttl).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	if err := r.client.Del(ctx, r.attemptKey(userID)).Err(); err != nil {
		return "", fmt.Errorf("reset otp attempts: %w", err)
	}
	return code, nil
}

// Verify checks a submitted code against the stored hash and consumes it on
// success. Exceeding the attempt budget invalidates the outstanding code.
func (r *RedisOTPStore) Verify(ctx context.Context, userID uuid.UUID, code string) error {
	attempts, err := otpAttemptScript.Run(ctx, r.client, []string{r.attemptKey(userID)}, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("count otp attempt: %w", err)
	}
	if attempts > r.maxAttempts {
		r.client.Del(ctx, r.codeKey(userID))
		return ErrOTPLocked
	}

	storedHash, err := r.client.Get(ctx, r.codeKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("load otp: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(strings.TrimSpace(code))) != nil {
		return ErrInvalidOTP
	}

	// Consume: a verified code never verifies twice.
	if err := r.client.Del(ctx, r.codeKey(userID), r.attemptKey(userID)).Err(); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

func generateNumericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
