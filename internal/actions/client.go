package actions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Client is the full set of TrustPay contract actions. Writes return the mined
// receipt; reads return decoded values.
type Client interface {
	GetBalances(ctx context.Context, account common.Address) (Balances, error)
	TransferSPAY(ctx context.Context, to common.Address, amount *big.Int) (*types.Receipt, error)
	CheckKYC(ctx context.Context, account common.Address) (bool, error)
	VerifyUser(ctx context.Context, user common.Address) (*types.Receipt, error)

	GetETFPrice(ctx context.Context) (*big.Int, error)
	GetETFYield(ctx context.Context, account common.Address) (*big.Int, error)
	DistributeYield(ctx context.Context, recipient common.Address) (*types.Receipt, error)

	SetPayrollSchedule(ctx context.Context, employee common.Address, amount, interval *big.Int) (*types.Receipt, error)
	ProcessPayroll(ctx context.Context, employee common.Address) (*types.Receipt, error)
	ProcessBatchPayroll(ctx context.Context, employees []common.Address) (*types.Receipt, error)

	InvestInETF(ctx context.Context, amount *big.Int) (*types.Receipt, error)
	WithdrawInvestment(ctx context.Context, etfAmount *big.Int) (*types.Receipt, error)
	GetUserInvestment(ctx context.Context, account common.Address) (*big.Int, error)

	LockSavings(ctx context.Context, amount *big.Int) (*types.Receipt, error)
	WithdrawSavings(ctx context.Context) (*types.Receipt, error)
	GetSavingsInfo(ctx context.Context, account common.Address) (SavingsInfo, error)

	LockCollateral(ctx context.Context, amount *big.Int) (*types.Receipt, error)
	ReleaseCollateral(ctx context.Context, amount *big.Int, recipient common.Address) (*types.Receipt, error)
	GetCollateralRatio(ctx context.Context) (*big.Int, error)
	GetTotalCollateralLocked(ctx context.Context) (*big.Int, error)
	GetMinCollateralRatio(ctx context.Context) (*big.Int, error)

	RegisterAsEmployer(ctx context.Context) (*types.Receipt, error)
	RegisterAsEmployee(ctx context.Context, employer string) (*types.Receipt, error)
	CheckEmployerRole(ctx context.Context, account common.Address) (bool, error)
	CheckEmployeeRole(ctx context.Context, account common.Address) (bool, error)
	GetEmployerAddress(ctx context.Context, employee common.Address) (common.Address, error)
	CheckRole(ctx context.Context, role Role, account common.Address) (bool, error)
	RevokeRole(ctx context.Context, role Role, account common.Address) (*types.Receipt, error)
	RenounceRole(ctx context.Context, role Role, account common.Address) (*types.Receipt, error)
	PauseContract(ctx context.Context) (*types.Receipt, error)
	UnpauseContract(ctx context.Context) (*types.Receipt, error)
	ResolveRole(ctx context.Context, account common.Address) (Role, error)
}

// Balances holds an account's token balances in base units.
type Balances struct {
	SPAY *big.Int
	ETF  *big.Int
}

// SavingsInfo describes an account's locked savings.
type SavingsInfo struct {
	Amount            *big.Int
	UnlockTime        *big.Int
	RemainingLockTime *big.Int
}
