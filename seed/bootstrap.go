// Package seed initializes a fresh market and funds its participants.
package seed

import (
	"context"
	"errors"
	"fmt"

	"h2hServer/config"
	"h2hServer/market"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DemoAccounts are funded when no accounts are configured.
var DemoAccounts = []string{
	"0x1234567890123456789012345678901234567890",
	"0xABCDEF0123456789ABCDEF0123456789ABCDEF01",
	"0x9876543210987654321098765432109876543210",
	"0xDEADBEEF00000000000000000000000DEADBEEF0",
}

// Minter credits token balances outside the market program.
type Minter interface {
	Mint(ctx context.Context, denomination, account market.Address, amount uint64) error
}

// Options describe what Bootstrap creates.
type Options struct {
	Admin        market.Address
	Denomination market.Address
	Accounts     []market.Address
	MintAmount   uint64
	Log          *zap.Logger
}

// Step reports the outcome of one initialization.
type Step struct {
	Name    string
	Created bool
}

// Bootstrap initializes every market region that does not exist yet, then
// mints MintAmount to each account in the configured denomination. Running it
// again only mints.
func Bootstrap(ctx context.Context, program *market.Program, minter Minter, opts Options) ([]Step, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	inits := []struct {
		name string
		run  func() error
	}{
		{"config", func() error {
			return program.InitializeConfig(ctx, opts.Admin, market.ConfigArgs{
				Denomination:         opts.Denomination,
				BetSize:              config.DefaultBetSize,
				JoinThresholdPercent: config.DefaultJoinThreshold,
				WinThresholdPercent:  config.DefaultWinThreshold,
				ThresholdDecimals:    config.DefaultThresholdDecimals,
			})
		}},
		{"prices", func() error {
			return program.InitializePrices(ctx, opts.Admin, config.DefaultInitialPrice, config.DefaultPriceDecimals)
		}},
		{"games", func() error { return program.InitializeGames(ctx, opts.Admin) }},
		{"vault", func() error { return program.InitializeVault(ctx, opts.Admin, opts.Denomination) }},
	}

	steps := make([]Step, 0, len(inits))
	for _, in := range inits {
		switch err := in.run(); {
		case err == nil:
			steps = append(steps, Step{Name: in.name, Created: true})
		case errors.Is(err, market.ErrAlreadyInitialized):
			steps = append(steps, Step{Name: in.name})
		default:
			return steps, fmt.Errorf("initialize %s: %w", in.name, err)
		}
	}

	// The market trades whatever denomination the stored config names
	cfg, err := program.Config(ctx)
	if err != nil {
		return steps, fmt.Errorf("read config: %w", err)
	}
	for _, a := range opts.Accounts {
		if err := minter.Mint(ctx, cfg.Denomination, a, opts.MintAmount); err != nil {
			return steps, fmt.Errorf("mint to %s: %w", a.Hex(), err)
		}
		log.Debug("💰 Minted", zap.Stringer("account", a), zap.Uint64("amount", opts.MintAmount))
	}
	return steps, nil
}

// Accounts parses configured account addresses, falling back to
// DemoAccounts when none are set.
func Accounts(configured []string) []market.Address {
	src := configured
	if len(src) == 0 {
		src = DemoAccounts
	}
	out := make([]market.Address, 0, len(src))
	for _, a := range src {
		out = append(out, common.HexToAddress(a))
	}
	return out
}

// Denomination returns the configured token address or the derived default.
func Denomination(configured string) market.Address {
	if configured == "" {
		return market.DeriveAccount("token")
	}
	return common.HexToAddress(configured)
}
