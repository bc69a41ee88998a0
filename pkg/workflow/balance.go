package workflow

import (
	"context"
	"strings"

	"approval-ledger/pkg/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceAccessor reads and overwrites user balances. It is independent of
// the transaction workflow: approving a transaction does not move money.
type BalanceAccessor struct {
	store store.RecordStore
	opts  Options
}

// NewBalanceAccessor creates an accessor over s.
func NewBalanceAccessor(s store.RecordStore, opts ...Option) *BalanceAccessor {
	return &BalanceAccessor{store: s, opts: buildOptions("balance", opts)}
}

// Get returns the user's balance. A user without a balance field has 0, and
// a negative stored balance reads as 0.
func (b *BalanceAccessor) Get(ctx context.Context, userID string) (decimal.Decimal, error) {
	if strings.TrimSpace(userID) == "" {
		return decimal.Zero, required("userId")
	}

	doc, err := b.store.Get(ctx, b.opts.Collections.Users, userID)
	if err != nil {
		return decimal.Zero, storeError(err, "user", userID)
	}

	raw, present := doc["balance"]
	if !present || raw == nil {
		return decimal.Zero, nil
	}
	balance, ok := toDecimal(raw)
	if !ok {
		b.opts.log(ctx).Warn("unreadable stored balance", zap.String("user_id", userID), zap.Any("balance", raw))
		return decimal.Zero, nil
	}
	if balance.IsNegative() {
		b.opts.log(ctx).Warn("negative stored balance", zap.String("user_id", userID), zap.String("balance", balance.String()))
		return decimal.Zero, nil
	}
	return balance, nil
}

// Set overwrites the user's balance. nil means the caller sent no balance;
// zero is a valid balance.
func (b *BalanceAccessor) Set(ctx context.Context, userID string, balance *decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(userID) == "" {
		return decimal.Zero, required("id")
	}
	if balance == nil {
		return decimal.Zero, required("balance")
	}
	if balance.IsNegative() {
		return decimal.Zero, invalid("balance", "must not be negative")
	}

	err := b.store.Update(ctx, b.opts.Collections.Users, userID, store.Document{"balance": balance.String()})
	if err != nil {
		if !store.IsNotFound(err) {
			b.opts.log(ctx).Error("failed to set balance", zap.String("user_id", userID), zap.Error(err))
		}
		return decimal.Zero, storeError(err, "user", userID)
	}

	b.opts.log(ctx).Info("balance set", zap.String("user_id", userID), zap.String("balance", balance.String()))
	return *balance, nil
}

// ParseBalance parses a request balance. A nil result means none was sent.
func ParseBalance(v interface{}) (*decimal.Decimal, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, ok := toDecimal(v)
	if !ok {
		return nil, invalid("balance", "must be a decimal number")
	}
	return &d, nil
}
