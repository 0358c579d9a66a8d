package auth

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"h2hServer/crypto"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Unix(1_700_000_000, 0)

func signed(t *testing.T, op string, ts int64, args ...string) (Request, string) {
	t.Helper()
	key, addr, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.SignText(key, Message(op, args, ts))
	require.NoError(t, err)
	return Request{Address: addr.Hex(), Timestamp: ts, Signature: sig}, addr.Hex()
}

func newTestVerifier() *Verifier {
	return NewVerifier(time.Minute, NewMemoryReplayGuard(), WithClock(func() time.Time { return now }))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "h2h:joinGame:3:1700000000", Message("joinGame", []string{"3"}, 1_700_000_000))
	assert.Equal(t, "h2h:initializeGames:1700000000", Message("initializeGames", nil, 1_700_000_000))
}

func TestVerify(t *testing.T) {
	v := newTestVerifier()
	req, addr := signed(t, "joinGame", now.Unix(), "3")

	got, err := v.Verify(context.Background(), req, "joinGame", "3")
	require.NoError(t, err)
	assert.Equal(t, addr, got.Hex())

	_, err = v.Verify(context.Background(), req, "joinGame", "3")
	assert.ErrorIs(t, err, ErrReplayed)
}

func TestVerifyRejectsReencodedSignature(t *testing.T) {
	v := newTestVerifier()
	ctx := context.Background()
	req, _ := signed(t, "createGame", now.Unix(), "true")

	_, err := v.Verify(ctx, req, "createGame", "true")
	require.NoError(t, err)

	raw, err := hexutil.Decode(req.Signature)
	require.NoError(t, err)
	raw[64] -= 27
	req.Signature = hexutil.Encode(raw)
	_, err = v.Verify(ctx, req, "createGame", "true")
	assert.ErrorIs(t, err, ErrReplayed)

	req.Signature = "0X" + strings.ToUpper(req.Signature[2:])
	_, err = v.Verify(ctx, req, "createGame", "true")
	assert.ErrorIs(t, err, ErrReplayed)
}

func TestVerifyRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("missing fields", func(t *testing.T) {
		_, err := newTestVerifier().Verify(ctx, Request{}, "joinGame")
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req, _ := signed(t, "joinGame", now.Add(-2*time.Minute).Unix(), "3")
		_, err := newTestVerifier().Verify(ctx, req, "joinGame", "3")
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("future timestamp", func(t *testing.T) {
		req, _ := signed(t, "joinGame", now.Add(2*time.Minute).Unix(), "3")
		_, err := newTestVerifier().Verify(ctx, req, "joinGame", "3")
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("different args", func(t *testing.T) {
		req, _ := signed(t, "joinGame", now.Unix(), "3")
		_, err := newTestVerifier().Verify(ctx, req, "joinGame", "4")
		assert.ErrorIs(t, err, ErrSignerMismatch)
	})

	t.Run("different op", func(t *testing.T) {
		req, _ := signed(t, "joinGame", now.Unix(), "3")
		_, err := newTestVerifier().Verify(ctx, req, "withdrawFromGame", "3")
		assert.ErrorIs(t, err, ErrSignerMismatch)
	})

	t.Run("claimed address belongs to someone else", func(t *testing.T) {
		req, _ := signed(t, "joinGame", now.Unix(), "3")
		_, other := signed(t, "joinGame", now.Unix(), "3")
		req.Address = other
		_, err := newTestVerifier().Verify(ctx, req, "joinGame", "3")
		assert.ErrorIs(t, err, ErrSignerMismatch)
	})

	t.Run("malformed signature", func(t *testing.T) {
		req, _ := signed(t, "joinGame", now.Unix(), "3")
		req.Signature = "0xdeadbeef"
		_, err := newTestVerifier().Verify(ctx, req, "joinGame", "3")
		assert.ErrorIs(t, err, crypto.ErrBadSignature)
	})
}

func TestMemoryReplayGuardExpiry(t *testing.T) {
	g := NewMemoryReplayGuard()
	clock := now
	g.now = func() time.Time { return clock }
	ctx := context.Background()

	ok, err := g.Claim(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	clock = clock.Add(time.Minute)
	ok, err = g.Claim(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisReplayGuard(t *testing.T) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()

	g := NewRedisReplayGuard(client, "h2h:test:nonce:")
	key := time.Now().String()
	t.Cleanup(func() { client.Del(ctx, "h2h:test:nonce:"+key) })

	ok, err := g.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
