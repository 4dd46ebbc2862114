package actions

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClientPayrollFlow(t *testing.T) {
	ctx := context.Background()
	employer := NewFakeClient(signer)
	worker := employer.As(employee)
	employer.Fund(signer, big.NewInt(10_000))

	_, err := worker.RegisterAsEmployee(ctx, signer.Hex())
	assert.ErrorIs(t, err, ErrGuard, "employer not registered yet")

	_, err = employer.RegisterAsEmployer(ctx)
	require.NoError(t, err)
	_, err = worker.RegisterAsEmployee(ctx, "xdc"+signer.Hex()[2:])
	require.NoError(t, err)

	role, err := worker.ResolveRole(ctx, employee)
	require.NoError(t, err)
	assert.Equal(t, RoleEmployee, role)
	boss, err := worker.GetEmployerAddress(ctx, employee)
	require.NoError(t, err)
	assert.Equal(t, signer, boss)

	_, err = worker.SetPayrollSchedule(ctx, employee, big.NewInt(100), big.NewInt(60))
	assert.ErrorIs(t, err, ErrCallException)

	_, err = employer.SetPayrollSchedule(ctx, employee, big.NewInt(2500), big.NewInt(2592000))
	require.NoError(t, err)
	receipt, err := employer.ProcessBatchPayroll(ctx, []common.Address{employee})
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, receipt.TxHash)

	b, err := worker.GetBalances(ctx, employee)
	require.NoError(t, err)
	assert.Equal(t, "2500", b.SPAY.String())
	b, err = employer.GetBalances(ctx, signer)
	require.NoError(t, err)
	assert.Equal(t, "7500", b.SPAY.String())
}

func TestFakeClientBatchPayrollIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := NewFakeClient(signer)
	f.Grant(signer, RoleEmployer)
	f.Fund(signer, big.NewInt(100))

	_, err := f.SetPayrollSchedule(ctx, employee, big.NewInt(80), big.NewInt(1))
	require.NoError(t, err)
	other := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	_, err = f.SetPayrollSchedule(ctx, other, big.NewInt(80), big.NewInt(1))
	require.NoError(t, err)

	_, err = f.ProcessBatchPayroll(ctx, []common.Address{employee, other})
	assert.ErrorIs(t, err, ErrCallException)

	b, _ := f.GetBalances(ctx, employee)
	assert.Zero(t, b.SPAY.Sign())
}

func TestFakeClientRegistrationGuards(t *testing.T) {
	ctx := context.Background()
	f := NewFakeClient(signer)
	f.Grant(signer, RoleEmployee)

	_, err := f.RegisterAsEmployer(ctx)
	assert.ErrorIs(t, err, ErrGuard)
	assert.Contains(t, err.Error(), msgEmployeeNotEmployer)

	employer, _ := f.CheckEmployerRole(ctx, signer)
	assert.False(t, employer)
}

func TestFakeClientSavingsLock(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	f := NewFakeClient(signer)
	f.SetClock(func() time.Time { return now })
	f.Fund(signer, big.NewInt(500))

	_, err := f.LockSavings(ctx, big.NewInt(200))
	require.NoError(t, err)

	info, err := f.GetSavingsInfo(ctx, signer)
	require.NoError(t, err)
	assert.Equal(t, "200", info.Amount.String())
	assert.Equal(t, int64(savingsLock/time.Second), info.RemainingLockTime.Int64())

	_, err = f.WithdrawSavings(ctx)
	assert.ErrorIs(t, err, ErrCallException)

	now = now.Add(savingsLock)
	_, err = f.WithdrawSavings(ctx)
	require.NoError(t, err)
	b, _ := f.GetBalances(ctx, signer)
	assert.Equal(t, "500", b.SPAY.String())
}

func TestFakeClientInvestAndCollateral(t *testing.T) {
	ctx := context.Background()
	f := NewFakeClient(signer)
	f.Fund(signer, big.NewInt(1000))

	_, err := f.InvestInETF(ctx, big.NewInt(400))
	require.NoError(t, err)
	invested, _ := f.GetUserInvestment(ctx, signer)
	assert.Equal(t, "400", invested.String())

	_, err = f.WithdrawInvestment(ctx, big.NewInt(500))
	assert.ErrorIs(t, err, ErrCallException)

	_, err = f.LockCollateral(ctx, big.NewInt(300))
	require.NoError(t, err)
	ratio, _ := f.GetCollateralRatio(ctx)
	assert.Equal(t, "10000", ratio.String())

	_, err = f.ReleaseCollateral(ctx, big.NewInt(100), employee)
	require.NoError(t, err)
	locked, _ := f.GetTotalCollateralLocked(ctx)
	assert.Equal(t, "200", locked.String())
}

func TestFakeClientPause(t *testing.T) {
	ctx := context.Background()
	f := NewFakeClient(signer)
	f.Fund(signer, big.NewInt(10))

	_, err := f.PauseContract(ctx)
	require.NoError(t, err)
	_, err = f.TransferSPAY(ctx, employee, big.NewInt(1))
	assert.ErrorIs(t, err, ErrCallException)
	assert.Contains(t, err.Error(), "Pausable: paused")

	_, err = f.UnpauseContract(ctx)
	require.NoError(t, err)
	_, err = f.TransferSPAY(ctx, employee, big.NewInt(1))
	require.NoError(t, err)
}

func TestFakeClientWithoutSigner(t *testing.T) {
	_, err := NewFakeClient(common.Address{}).WithdrawSavings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to withdraw savings")
}
