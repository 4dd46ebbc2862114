package actions

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"trustpay/internal/contracts"
)

type viewFunc func(args []interface{}) ([]interface{}, error)

// fakeContract records every transaction and estimate and answers views from
// per-method functions.
type fakeContract struct {
	address common.Address

	mu          sync.Mutex
	views       map[string]viewFunc
	callErr     error
	txErr       error
	estimateErr error
	sent        []string
	estimated   []string
}

func newFakeContract(n byte) *fakeContract {
	return &fakeContract{address: common.BytesToAddress([]byte{0x10, n}), views: map[string]viewFunc{}}
}

func (c *fakeContract) view(method string, out ...interface{}) *fakeContract {
	return c.viewFn(method, func([]interface{}) ([]interface{}, error) { return out, nil })
}

func (c *fakeContract) viewFn(method string, fn viewFunc) *fakeContract {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[method] = fn
	return c
}

func (c *fakeContract) Address() common.Address { return c.address }

func (c *fakeContract) Call(_ context.Context, method string, args ...interface{}) ([]interface{}, error) {
	c.mu.Lock()
	fn, ok := c.views[method]
	callErr := c.callErr
	c.mu.Unlock()
	if callErr != nil {
		return nil, callErr
	}
	if !ok {
		return nil, fmt.Errorf("no view %s", method)
	}
	return fn(args)
}

func (c *fakeContract) Transact(_ context.Context, method string, args ...interface{}) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, method)
	if c.txErr != nil {
		return nil, c.txErr
	}
	to := c.address
	return types.NewTx(&types.LegacyTx{
		Nonce:    uint64(len(c.sent)),
		To:       &to,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Data:     []byte(method),
	}), nil
}

func (c *fakeContract) Estimate(_ context.Context, method string, _ ...interface{}) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.estimated = append(c.estimated, method)
	return 21000, c.estimateErr
}

func (c *fakeContract) transactions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

type fakeWaiter struct {
	receipt *types.Receipt
	err     error
}

func (w *fakeWaiter) WaitMined(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if w.err != nil {
		return nil, w.err
	}
	r := *w.receipt
	r.TxHash = tx.Hash()
	return &r, nil
}

type fixture struct {
	set        *contracts.HandleSet
	spay       *fakeContract
	etf        *fakeContract
	payroll    *fakeContract
	collateral *fakeContract
	investment *fakeContract
	savings    *fakeContract
	roles      *fakeContract
	waiter     *fakeWaiter
}

var signer = common.HexToAddress("0x60c977735cfBF44Cf5B33bD02a8B637765E7AbbB")

func newFixture() *fixture {
	fx := &fixture{
		spay:       newFakeContract(1),
		etf:        newFakeContract(2),
		payroll:    newFakeContract(3),
		collateral: newFakeContract(4),
		investment: newFakeContract(5),
		savings:    newFakeContract(6),
		roles:      newFakeContract(7),
		waiter:     &fakeWaiter{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(9)}},
	}
	fx.roles.
		view("hasRole", false).
		view("isEmployer", true)
	fx.set = &contracts.HandleSet{
		From:              signer,
		SPAYToken:         fx.spay,
		ETFToken:          fx.etf,
		PayrollProcessor:  fx.payroll,
		CollateralManager: fx.collateral,
		InvestmentManager: fx.investment,
		SavingsManager:    fx.savings,
		RoleManager:       fx.roles,
		Waiter:            fx.waiter,
	}
	return fx
}

func (fx *fixture) all() []*fakeContract {
	return []*fakeContract{fx.spay, fx.etf, fx.payroll, fx.collateral, fx.investment, fx.savings, fx.roles}
}
