package actions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// GetBalances reads the SPAY and ETF balances of account concurrently.
func (s *Service) GetBalances(ctx context.Context, account common.Address) (Balances, error) {
	const prefix = "Failed to get balances"
	set, err := s.bind(ctx, prefix)
	if err != nil {
		return Balances{}, err
	}

	var spay, etf []interface{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		spay, err = s.call(gctx, set, prefix, spayToken, "balanceOf", account)
		return err
	})
	g.Go(func() error {
		var err error
		etf, err = s.call(gctx, set, prefix, etfToken, "balanceOf", account)
		return err
	})
	if err := g.Wait(); err != nil {
		return Balances{}, err
	}

	spayBalance, err := decode[*big.Int](prefix, spay, 0)
	if err != nil {
		return Balances{}, err
	}
	etfBalance, err := decode[*big.Int](prefix, etf, 0)
	if err != nil {
		return Balances{}, err
	}
	return Balances{SPAY: spayBalance, ETF: etfBalance}, nil
}

func (s *Service) TransferSPAY(ctx context.Context, to common.Address, amount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to transfer SPAY"
	if err := requireAddress(prefix, to, "recipient"); err != nil {
		return nil, err
	}
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	return s.submit(ctx, prefix, spayToken, "transfer", to, amount)
}

// CheckKYC reports whether account passed verification on the stablecoin.
func (s *Service) CheckKYC(ctx context.Context, account common.Address) (bool, error) {
	return s.readBool(ctx, "Failed to check KYC", spayToken, "isVerified", account)
}

func (s *Service) VerifyUser(ctx context.Context, user common.Address) (*types.Receipt, error) {
	const prefix = "Failed to verify user"
	if err := requireAddress(prefix, user, "user"); err != nil {
		return nil, err
	}
	return s.submit(ctx, prefix, spayToken, "verifyUser", user)
}
