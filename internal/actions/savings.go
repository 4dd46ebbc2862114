package actions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

func (s *Service) LockSavings(ctx context.Context, amount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to lock savings"
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	return s.submit(ctx, prefix, savingsManager, "lockSavings", amount)
}

func (s *Service) WithdrawSavings(ctx context.Context) (*types.Receipt, error) {
	return s.submit(ctx, "Failed to withdraw savings", savingsManager, "withdrawSavings")
}

// GetSavingsInfo combines the savings record and the remaining lock time.
func (s *Service) GetSavingsInfo(ctx context.Context, account common.Address) (SavingsInfo, error) {
	const prefix = "Failed to get savings info"
	set, err := s.bind(ctx, prefix)
	if err != nil {
		return SavingsInfo{}, err
	}

	var record, remaining []interface{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		record, err = s.call(gctx, set, prefix, savingsManager, "userSavings", account)
		return err
	})
	g.Go(func() error {
		var err error
		remaining, err = s.call(gctx, set, prefix, savingsManager, "getRemainingLockTime", account)
		return err
	})
	if err := g.Wait(); err != nil {
		return SavingsInfo{}, err
	}

	var info SavingsInfo
	if info.Amount, err = decode[*big.Int](prefix, record, 0); err != nil {
		return SavingsInfo{}, err
	}
	if info.UnlockTime, err = decode[*big.Int](prefix, record, 1); err != nil {
		return SavingsInfo{}, err
	}
	if info.RemainingLockTime, err = decode[*big.Int](prefix, remaining, 0); err != nil {
		return SavingsInfo{}, err
	}
	return info, nil
}
