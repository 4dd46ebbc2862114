package actions

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// savingsLock is how long LockSavings keeps funds locked in the fake ledger.
const savingsLock = 30 * 24 * time.Hour

type schedule struct {
	amount   *big.Int
	interval *big.Int
}

// FakeClient mimics the TrustPay contracts with an in-memory ledger. Every
// write acts as From and yields a receipt whose hash is derived from the call.
type FakeClient struct {
	From        common.Address
	Price       *big.Int
	YieldBps    *big.Int
	MinRatioBps *big.Int

	l *ledger
}

type ledger struct {
	mu         sync.Mutex
	now        func() time.Time
	nonce      uint64
	paused     bool
	collateral *big.Int
	spay       map[common.Address]*big.Int
	etf        map[common.Address]*big.Int
	invested   map[common.Address]*big.Int
	verified   map[common.Address]bool
	roles      map[common.Address]map[Role]bool
	employerOf map[common.Address]common.Address
	schedules  map[common.Address]schedule
	savings    map[common.Address]SavingsInfo
}

var _ Client = (*FakeClient)(nil)

func NewFakeClient(from common.Address) *FakeClient {
	return &FakeClient{
		From:        from,
		Price:       big.NewInt(100_000000),
		YieldBps:    big.NewInt(500),
		MinRatioBps: big.NewInt(15000),
		l: &ledger{
			now:        time.Now,
			collateral: new(big.Int),
			spay:       map[common.Address]*big.Int{},
			etf:        map[common.Address]*big.Int{},
			invested:   map[common.Address]*big.Int{},
			verified:   map[common.Address]bool{},
			roles:      map[common.Address]map[Role]bool{},
			employerOf: map[common.Address]common.Address{},
			schedules:  map[common.Address]schedule{},
			savings:    map[common.Address]SavingsInfo{},
		},
	}
}

// As returns a client acting as account over the same ledger.
func (f *FakeClient) As(account common.Address) *FakeClient {
	view := *f
	view.From = account
	return &view
}

// Fund credits account with SPAY.
func (f *FakeClient) Fund(account common.Address, amount *big.Int) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	credit(f.l.spay, account, amount)
}

// Grant gives account a role without any guard.
func (f *FakeClient) Grant(account common.Address, role Role) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	f.grant(account, role)
}

// SetClock replaces the time source used for savings locks.
func (f *FakeClient) SetClock(now func() time.Time) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	f.l.now = now
}

func (f *FakeClient) grant(account common.Address, role Role) {
	if f.l.roles[account] == nil {
		f.l.roles[account] = map[Role]bool{}
	}
	f.l.roles[account][role] = true
}

func balance(m map[common.Address]*big.Int, account common.Address) *big.Int {
	if v, ok := m[account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func credit(m map[common.Address]*big.Int, account common.Address, amount *big.Int) {
	m[account] = new(big.Int).Add(balance(m, account), amount)
}

func debit(m map[common.Address]*big.Int, account common.Address, amount *big.Int) bool {
	current := balance(m, account)
	if current.Cmp(amount) < 0 {
		return false
	}
	m[account] = current.Sub(current, amount)
	return true
}

func revert(prefix, reason string) error {
	return &Error{Prefix: prefix, Code: CodeCallException, Err: fmt.Errorf("execution reverted: %s", reason)}
}

func (f *FakeClient) receipt(method string, args ...interface{}) *types.Receipt {
	f.l.nonce++
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s|%s|%d|%v", f.From.Hex(), method, f.l.nonce, args)))
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(f.l.nonce),
		GasUsed:     21000,
	}
}

func (f *FakeClient) writable(prefix string) error {
	if f.From == (common.Address{}) {
		return &Error{Prefix: prefix, Err: fmt.Errorf("no signer configured")}
	}
	if f.l.paused {
		return revert(prefix, "Pausable: paused")
	}
	return nil
}

func (f *FakeClient) GetBalances(_ context.Context, account common.Address) (Balances, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return Balances{SPAY: balance(f.l.spay, account), ETF: balance(f.l.etf, account)}, nil
}

func (f *FakeClient) TransferSPAY(_ context.Context, to common.Address, amount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to transfer SPAY"
	if err := requireAddress(prefix, to, "recipient"); err != nil {
		return nil, err
	}
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	if !debit(f.l.spay, f.From, amount) {
		return nil, revert(prefix, "ERC20: transfer amount exceeds balance")
	}
	credit(f.l.spay, to, amount)
	return f.receipt("transfer", to, amount), nil
}

func (f *FakeClient) CheckKYC(_ context.Context, account common.Address) (bool, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return f.l.verified[account], nil
}

func (f *FakeClient) VerifyUser(_ context.Context, user common.Address) (*types.Receipt, error) {
	const prefix = "Failed to verify user"
	if err := requireAddress(prefix, user, "user"); err != nil {
		return nil, err
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	f.l.verified[user] = true
	return f.receipt("verifyUser", user), nil
}

func (f *FakeClient) GetETFPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.Price), nil
}

func (f *FakeClient) GetETFYield(_ context.Context, account common.Address) (*big.Int, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return DailyYield(balance(f.l.etf, account), f.YieldBps), nil
}

func (f *FakeClient) DistributeYield(_ context.Context, recipient common.Address) (*types.Receipt, error) {
	const prefix = "Failed to distribute yield"
	if err := requireAddress(prefix, recipient, "recipient"); err != nil {
		return nil, err
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	credit(f.l.etf, recipient, DailyYield(balance(f.l.etf, recipient), f.YieldBps))
	return f.receipt("distributeYield", recipient), nil
}

func (f *FakeClient) SetPayrollSchedule(_ context.Context, employee common.Address, amount, interval *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to set payroll schedule"
	if err := requireAddress(prefix, employee, "employee"); err != nil {
		return nil, err
	}
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	if interval == nil || interval.Sign() <= 0 {
		return nil, &Error{Prefix: prefix, Err: invalid("interval must be positive")}
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	if !f.l.roles[f.From][RoleEmployer] {
		return nil, revert(prefix, "caller is not an employer")
	}
	f.l.schedules[employee] = schedule{amount: new(big.Int).Set(amount), interval: new(big.Int).Set(interval)}
	return f.receipt("setPayrollSchedule", employee, amount, interval), nil
}

func (f *FakeClient) disburse(prefix string, employee common.Address) error {
	s, ok := f.l.schedules[employee]
	if !ok {
		return revert(prefix, "no payroll schedule")
	}
	if !debit(f.l.spay, f.From, s.amount) {
		return revert(prefix, "insufficient employer balance")
	}
	credit(f.l.spay, employee, s.amount)
	return nil
}

func (f *FakeClient) ProcessPayroll(_ context.Context, employee common.Address) (*types.Receipt, error) {
	const prefix = "Failed to process payroll"
	if err := requireAddress(prefix, employee, "employee"); err != nil {
		return nil, err
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	if err := f.disburse(prefix, employee); err != nil {
		return nil, err
	}
	return f.receipt("disbursePayroll", employee), nil
}

// ProcessBatchPayroll is all-or-nothing, like the single on-chain transaction.
func (f *FakeClient) ProcessBatchPayroll(_ context.Context, employees []common.Address) (*types.Receipt, error) {
	const prefix = "Failed to process batch payroll"
	if len(employees) == 0 {
		return nil, &Error{Prefix: prefix, Err: invalid("at least one employee is required")}
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, e := range employees {
		s, ok := f.l.schedules[e]
		if !ok {
			return nil, revert(prefix, "no payroll schedule for "+e.Hex())
		}
		total.Add(total, s.amount)
	}
	if balance(f.l.spay, f.From).Cmp(total) < 0 {
		return nil, revert(prefix, "insufficient employer balance")
	}
	for _, e := range employees {
		_ = f.disburse(prefix, e)
	}
	return f.receipt("disbursePayrollBatch", employees), nil
}

func (f *FakeClient) InvestInETF(_ context.Context, amount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to invest in ETF"
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	if !debit(f.l.spay, f.From, amount) {
		return nil, revert(prefix, "insufficient SPAY balance")
	}
	credit(f.l.etf, f.From, amount)
	credit(f.l.invested, f.From, amount)
	return f.receipt("invest", amount), nil
}

func (f *FakeClient) WithdrawInvestment(_ context.Context, etfAmount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to withdraw investment"
	if err := requireAmount(prefix, etfAmount); err != nil {
		return nil, err
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	if !debit(f.l.etf, f.From, etfAmount) {
		return nil, revert(prefix, "insufficient ETF balance")
	}
	if !debit(f.l.invested, f.From, etfAmount) {
		f.l.invested[f.From] = new(big.Int)
	}
	credit(f.l.spay, f.From, etfAmount)
	return f.receipt("withdraw", etfAmount), nil
}

func (f *FakeClient) GetUserInvestment(_ context.Context, account common.Address) (*big.Int, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return balance(f.l.invested, account), nil
}

func (f *FakeClient) LockSavings(_ context.Context, amount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to lock savings"
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	if !debit(f.l.spay, f.From, amount) {
		return nil, revert(prefix, "insufficient SPAY balance")
	}
	info := f.l.savings[f.From]
	if info.Amount == nil {
		info.Amount = new(big.Int)
	}
	info.Amount = new(big.Int).Add(info.Amount, amount)
	info.UnlockTime = big.NewInt(f.l.now().Add(savingsLock).Unix())
	f.l.savings[f.From] = info
	return f.receipt("lockSavings", amount), nil
}

func (f *FakeClient) WithdrawSavings(context.Context) (*types.Receipt, error) {
	const prefix = "Failed to withdraw savings"
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	info, ok := f.l.savings[f.From]
	if !ok || info.Amount.Sign() == 0 {
		return nil, revert(prefix, "no savings")
	}
	if f.l.now().Unix() < info.UnlockTime.Int64() {
		return nil, revert(prefix, "savings still locked")
	}
	credit(f.l.spay, f.From, info.Amount)
	delete(f.l.savings, f.From)
	return f.receipt("withdrawSavings"), nil
}

func (f *FakeClient) GetSavingsInfo(_ context.Context, account common.Address) (SavingsInfo, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	info, ok := f.l.savings[account]
	if !ok {
		return SavingsInfo{Amount: new(big.Int), UnlockTime: new(big.Int), RemainingLockTime: new(big.Int)}, nil
	}
	remaining := info.UnlockTime.Int64() - f.l.now().Unix()
	if remaining < 0 {
		remaining = 0
	}
	return SavingsInfo{
		Amount:            new(big.Int).Set(info.Amount),
		UnlockTime:        new(big.Int).Set(info.UnlockTime),
		RemainingLockTime: big.NewInt(remaining),
	}, nil
}

func (f *FakeClient) LockCollateral(_ context.Context, amount *big.Int) (*types.Receipt, error) {
	const prefix = "Failed to lock collateral"
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	if !debit(f.l.spay, f.From, amount) {
		return nil, revert(prefix, "insufficient SPAY balance")
	}
	f.l.collateral.Add(f.l.collateral, amount)
	return f.receipt("lockCollateral", amount), nil
}

func (f *FakeClient) ReleaseCollateral(_ context.Context, amount *big.Int, recipient common.Address) (*types.Receipt, error) {
	const prefix = "Failed to release collateral"
	if err := requireAmount(prefix, amount); err != nil {
		return nil, err
	}
	if err := requireAddress(prefix, recipient, "recipient"); err != nil {
		return nil, err
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	if f.l.collateral.Cmp(amount) < 0 {
		return nil, revert(prefix, "insufficient collateral")
	}
	f.l.collateral.Sub(f.l.collateral, amount)
	credit(f.l.spay, recipient, amount)
	return f.receipt("releaseCollateral", amount, recipient), nil
}

// GetCollateralRatio is locked collateral over circulating SPAY, in basis points.
func (f *FakeClient) GetCollateralRatio(context.Context) (*big.Int, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	supply := new(big.Int)
	for _, v := range f.l.spay {
		supply.Add(supply, v)
	}
	if supply.Sign() == 0 {
		return new(big.Int), nil
	}
	ratio := new(big.Int).Mul(f.l.collateral, big.NewInt(10000))
	return ratio.Quo(ratio, supply), nil
}

func (f *FakeClient) GetTotalCollateralLocked(context.Context) (*big.Int, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return new(big.Int).Set(f.l.collateral), nil
}

func (f *FakeClient) GetMinCollateralRatio(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.MinRatioBps), nil
}

func (f *FakeClient) RegisterAsEmployer(context.Context) (*types.Receipt, error) {
	const prefix = "Failed to register as employer"
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	held := f.l.roles[f.From]
	if held[RoleEmployer] {
		return nil, &Error{Prefix: prefix, Err: guard(msgAlreadyEmployer)}
	}
	if held[RoleEmployee] {
		return nil, &Error{Prefix: prefix, Err: guard(msgEmployeeNotEmployer)}
	}
	f.grant(f.From, RoleEmployer)
	return f.receipt("registerAsEmployer"), nil
}

func (f *FakeClient) RegisterAsEmployee(_ context.Context, employer string) (*types.Receipt, error) {
	const prefix = "Failed to register as employee"
	employerAddr, err := parseEmployer(prefix, employer)
	if err != nil {
		return nil, err
	}

	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	held := f.l.roles[f.From]
	if held[RoleEmployee] {
		return nil, &Error{Prefix: prefix, Err: guard(msgAlreadyEmployee)}
	}
	if held[RoleEmployer] {
		return nil, &Error{Prefix: prefix, Err: guard(msgEmployerNotEmployee)}
	}
	if !f.l.roles[employerAddr][RoleEmployer] {
		return nil, &Error{Prefix: prefix, Err: guard(msgUnknownEmployer)}
	}
	f.grant(f.From, RoleEmployee)
	f.l.employerOf[f.From] = employerAddr
	return f.receipt("registerAsEmployee", employerAddr), nil
}

func (f *FakeClient) CheckEmployerRole(_ context.Context, account common.Address) (bool, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return f.l.roles[account][RoleEmployer], nil
}

func (f *FakeClient) CheckEmployeeRole(_ context.Context, account common.Address) (bool, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return f.l.roles[account][RoleEmployee], nil
}

func (f *FakeClient) GetEmployerAddress(_ context.Context, employee common.Address) (common.Address, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return f.l.employerOf[employee], nil
}

func (f *FakeClient) CheckRole(_ context.Context, role Role, account common.Address) (bool, error) {
	if _, err := role.ID(); err != nil {
		return false, &Error{Prefix: "Failed to check role", Err: err}
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return f.l.roles[account][role], nil
}

func (f *FakeClient) RevokeRole(_ context.Context, role Role, account common.Address) (*types.Receipt, error) {
	return f.dropRole("Failed to revoke role", "revokeRole", role, account)
}

func (f *FakeClient) RenounceRole(_ context.Context, role Role, account common.Address) (*types.Receipt, error) {
	const prefix = "Failed to renounce role"
	if account != f.From {
		return nil, revert(prefix, "AccessControl: can only renounce roles for self")
	}
	return f.dropRole(prefix, "renounceRole", role, account)
}

func (f *FakeClient) dropRole(prefix, method string, role Role, account common.Address) (*types.Receipt, error) {
	if _, err := role.ID(); err != nil {
		return nil, &Error{Prefix: prefix, Err: err}
	}
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	delete(f.l.roles[account], role)
	if role == RoleEmployee {
		delete(f.l.employerOf, account)
	}
	return f.receipt(method, role, account), nil
}

func (f *FakeClient) PauseContract(context.Context) (*types.Receipt, error) {
	const prefix = "Failed to pause contract"
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if err := f.writable(prefix); err != nil {
		return nil, err
	}
	f.l.paused = true
	return f.receipt("pause"), nil
}

func (f *FakeClient) UnpauseContract(context.Context) (*types.Receipt, error) {
	const prefix = "Failed to unpause contract"
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if !f.l.paused {
		return nil, revert(prefix, "Pausable: not paused")
	}
	f.l.paused = false
	return f.receipt("unpause"), nil
}

func (f *FakeClient) ResolveRole(_ context.Context, account common.Address) (Role, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	switch held := f.l.roles[account]; {
	case held[RoleEmployer]:
		return RoleEmployer, nil
	case held[RoleEmployee]:
		return RoleEmployee, nil
	}
	return RoleNone, nil
}
