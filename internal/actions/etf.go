package actions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// PriceDecimals is the fixed-point precision of getETFPriceUSD.
const PriceDecimals = 6

// yieldDivisor turns an annual rate in basis points into a daily fraction.
var yieldDivisor = big.NewInt(365 * 10000)

func (s *Service) GetETFPrice(ctx context.Context) (*big.Int, error) {
	return s.readBig(ctx, "Failed to get ETF price", etfToken, "getETFPriceUSD")
}

// GetETFYield returns the daily yield on account's ETF balance:
// balance * annualYieldBps / (365 * 10000), truncated.
func (s *Service) GetETFYield(ctx context.Context, account common.Address) (*big.Int, error) {
	const prefix = "Failed to get ETF yield"
	set, err := s.bind(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var balanceOut, bpsOut []interface{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balanceOut, err = s.call(gctx, set, prefix, etfToken, "balanceOf", account)
		return err
	})
	g.Go(func() error {
		var err error
		bpsOut, err = s.call(gctx, set, prefix, etfToken, "annualYieldBps")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	balance, err := decode[*big.Int](prefix, balanceOut, 0)
	if err != nil {
		return nil, err
	}
	bps, err := decode[*big.Int](prefix, bpsOut, 0)
	if err != nil {
		return nil, err
	}
	return DailyYield(balance, bps), nil
}

// DailyYield computes balance * bps / (365 * 10000) with integer division.
func DailyYield(balance, bps *big.Int) *big.Int {
	y := new(big.Int).Mul(balance, bps)
	return y.Quo(y, yieldDivisor)
}

func (s *Service) DistributeYield(ctx context.Context, recipient common.Address) (*types.Receipt, error) {
	const prefix = "Failed to distribute yield"
	if err := requireAddress(prefix, recipient, "recipient"); err != nil {
		return nil, err
	}
	return s.submit(ctx, prefix, etfToken, "distributeYield", recipient)
}
