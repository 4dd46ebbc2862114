package actions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func (s *Service) InvestInETF(ctx context.Context, amount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to invest in ETF"
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	return s.submit(ctx, prefix, investmentManager, "invest", amount)
}

func (s *Service) WithdrawInvestment(ctx context.Context, etfAmount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to withdraw investment"
	if err := requireAmount(prefix, etfAmount); err != nil {
		return nil, err
	}
	return s.submit(ctx, prefix, investmentManager, "withdraw", etfAmount)
}

func (s *Service) GetUserInvestment(ctx context.Context, account common.Address) (*big.Int, error) {
	return s.readBig(ctx, "Failed to get user investment", investmentManager, "userInvestments", account)
}
