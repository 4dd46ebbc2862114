package actions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func (s *Service) LockCollateral(ctx context.Context, amount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to lock collateral"
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	return s.submit(ctx, prefix, collateralManager, "lockCollateral", amount)
}

func (s *Service) ReleaseCollateral(ctx context.Context, amount *big.Int, recipient common.Address) (*types.Receipt, error) {
	const prefix = "Failed to release collateral"
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	if err := requireAddress(prefix, recipient, "recipient"); err != nil {
		return nil, err
	}
	return s.submit(ctx, prefix, collateralManager, "releaseCollateral", amount, recipient)
}

// GetCollateralRatio returns the current ratio in basis points.
func (s *Service) GetCollateralRatio(ctx context.Context) (*big.Int, error) {
	return s.readBig(ctx, "Failed to get collateral ratio", collateralManager, "getCollateralRatio")
}

func (s *Service) GetTotalCollateralLocked(ctx context.Context) (*big.Int, error) {
	return s.readBig(ctx, "Failed to get total collateral locked", collateralManager, "totalCollateralLocked")
}

func (s *Service) GetMinCollateralRatio(ctx context.Context) (*big.Int, error) {
	return s.readBig(ctx, "Failed to get minimum collateral ratio", collateralManager, "minCollateralRatioBps")
}
