// Package crypto wraps the secp256k1 key handling used to sign and verify
// market requests with EIP-191 personal messages.
package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrBadSignature = errors.New("malformed signature")

// LoadPrivateKey parses a hex private key, with or without 0x prefix.
func LoadPrivateKey(hexKey string) (*ecdsa.PrivateKey, common.Address, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, common.Address{}, fmt.Errorf("private key not set")
	}

	key, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, ethcrypto.PubkeyToAddress(key.PublicKey), nil
}

// GenerateKey returns a fresh key and its address.
func GenerateKey() (*ecdsa.PrivateKey, common.Address, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, ethcrypto.PubkeyToAddress(key.PublicKey), nil
}

// SignText signs msg as an EIP-191 personal message and returns the 65-byte
// signature hex encoded with V in {27, 28}, as wallets produce it.
func SignText(key *ecdsa.PrivateKey, msg string) (string, error) {
	sig, err := ethcrypto.Sign(accounts.TextHash([]byte(msg)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[ethcrypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RecoverText returns the address that produced sigHex over msg. V may be
// either 0/1 or 27/28. High-S signatures are rejected.
func RecoverText(msg, sigHex string) (common.Address, error) {
	sig, err := decodeSignature(sigHex)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := ethcrypto.SigToPub(accounts.TextHash([]byte(msg)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// decodeSignature parses sigHex into the 65-byte [R || S || V] form with V
// in {0, 1}, rejecting out-of-range and malleable values.
func decodeSignature(sigHex string) ([]byte, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != ethcrypto.SignatureLength {
		return nil, ErrBadSignature
	}
	switch sig[ethcrypto.RecoveryIDOffset] {
	case 0, 1:
	case 27, 28:
		sig[ethcrypto.RecoveryIDOffset] -= 27
	default:
		return nil, ErrBadSignature
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !ethcrypto.ValidateSignatureValues(sig[ethcrypto.RecoveryIDOffset], r, s, true) {
		return nil, ErrBadSignature
	}
	return sig, nil
}
