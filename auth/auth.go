// Package auth authenticates callers of mutating market operations. A caller
// signs "h2h:<op>:<args...>:<unix timestamp>" as an EIP-191 personal message;
// the recovered signer becomes the operation's caller.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"h2hServer/crypto"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var (
	ErrMissingCredentials = errors.New("address, timestamp and signature are required")
	ErrExpired            = errors.New("request timestamp outside allowed window")
	ErrSignerMismatch     = errors.New("signature does not match address")
	ErrReplayed           = errors.New("request already used")
)

// Request is the signed envelope carried by every mutating call.
type Request struct {
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// Message returns the text a caller signs for op with args at timestamp.
func Message(op string, args []string, timestamp int64) string {
	parts := make([]string, 0, len(args)+3)
	parts = append(parts, "h2h", op)
	parts = append(parts, args...)
	parts = append(parts, strconv.FormatInt(timestamp, 10))
	return strings.Join(parts, ":")
}

// replayKey identifies a signed request independently of how its signature
// is encoded.
func replayKey(signer common.Address, msg string) string {
	return ethcrypto.Keccak256Hash(signer.Bytes(), []byte(msg)).Hex()
}

// ReplayGuard records used requests. Claim reports false when key was
// already claimed within ttl.
type ReplayGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Verifier struct {
	maxSkew time.Duration
	guard   ReplayGuard
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Verifier)

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(v *Verifier) { v.log = log }
}

func NewVerifier(maxSkew time.Duration, guard ReplayGuard, opts ...Option) *Verifier {
	v := &Verifier{
		maxSkew: maxSkew,
		guard:   guard,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns the authenticated caller of op with args.
func (v *Verifier) Verify(ctx context.Context, req Request, op string, args ...string) (common.Address, error) {
	if req.Address == "" || req.Signature == "" || req.Timestamp == 0 {
		return common.Address{}, ErrMissingCredentials
	}
	if !common.IsHexAddress(req.Address) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", ErrSignerMismatch, req.Address)
	}
	claimed := common.HexToAddress(req.Address)

	skew := v.now().Sub(time.Unix(req.Timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return common.Address{}, ErrExpired
	}

	msg := Message(op, args, req.Timestamp)
	signer, err := crypto.RecoverText(msg, req.Signature)
	if err != nil {
		return common.Address{}, err
	}
	if signer != claimed {
		v.log.Debug("signature mismatch",
			zap.String("op", op),
			zap.Stringer("claimed", claimed),
			zap.Stringer("recovered", signer),
		)
		return common.Address{}, ErrSignerMismatch
	}

	// A request stays valid for maxSkew on either side of its timestamp.
	ok, err := v.guard.Claim(ctx, replayKey(signer, msg), 2*v.maxSkew)
	if err != nil {
		return common.Address{}, fmt.Errorf("replay guard: %w", err)
	}
	if !ok {
		return common.Address{}, ErrReplayed
	}
	return signer, nil
}
