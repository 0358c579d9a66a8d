package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"h2hServer/market"

	"go.uber.org/zap"
)

// Sample results reported to the recorder.
const (
	ResultAdded     = "added"
	ResultUnchanged = "unchanged"
	ResultInvalid   = "invalid"
	ResultError     = "error"
)

// Feeder appends prices from a Source to the market feed as the admin.
type Feeder struct {
	program  *market.Program
	admin    market.Address
	source   Source
	interval time.Duration
	log      *zap.Logger
	record   func(result string)
}

type FeederOption func(*Feeder)

func WithLogger(log *zap.Logger) FeederOption {
	return func(f *Feeder) { f.log = log }
}

func WithRecorder(fn func(result string)) FeederOption {
	return func(f *Feeder) { f.record = fn }
}

func NewFeeder(program *market.Program, admin market.Address, source Source, interval time.Duration, opts ...FeederOption) *Feeder {
	f := &Feeder{
		program:  program,
		admin:    admin,
		source:   source,
		interval: interval,
		log:      zap.NewNop(),
		record:   func(string) {},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Tick reads one sample and appends it unless it is zero, too large or equal
// to the current price. It returns the result label.
func (f *Feeder) Tick(ctx context.Context) (string, error) {
	result, err := f.tick(ctx)
	f.record(result)
	return result, err
}

func (f *Feeder) tick(ctx context.Context) (string, error) {
	sample, err := f.source.Latest(ctx)
	if errors.Is(err, ErrNoSample) {
		return ResultInvalid, nil
	}
	if err != nil {
		return ResultError, fmt.Errorf("read price source: %w", err)
	}

	_, current, decimals, err := f.program.CurrentPrice(ctx)
	if err != nil {
		return ResultError, fmt.Errorf("read current price: %w", err)
	}

	v := sample.Rescale(decimals)
	if v.Sign() <= 0 || !v.IsUint64() {
		f.log.Warn("⚠️  Price sample out of range", zap.String("value", v.String()))
		return ResultInvalid, nil
	}
	if v.Uint64() == current {
		return ResultUnchanged, nil
	}

	index, err := f.program.AddPrice(ctx, f.admin, v.Uint64())
	if err != nil {
		return ResultError, fmt.Errorf("add price: %w", err)
	}
	f.log.Info("📈 Price added", zap.Uint32("index", index), zap.Uint64("price", v.Uint64()))
	return ResultAdded, nil
}

// Start ticks every interval until ctx is cancelled.
func (f *Feeder) Start(ctx context.Context) {
	f.log.Info("📡 Price feeder started", zap.Duration("interval", f.interval), zap.Stringer("admin", f.admin))

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.log.Info("🛑 Price feeder stopped")
			return
		case <-ticker.C:
			if _, err := f.Tick(ctx); err != nil {
				f.log.Warn("⚠️  Price feed tick failed", zap.Error(err))
			}
		}
	}
}
