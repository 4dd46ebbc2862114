package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"trustpay/internal/config"
)

var (
	// ErrInitialization is returned when a handle set cannot be built.
	ErrInitialization = errors.New("contract initialization failed")
	// ErrReadOnly is returned by Transact on handles bound without a signer.
	ErrReadOnly = errors.New("contract handle is read-only")
)

// Backend is the chain access a binder needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Contract is one bound contract. Call runs a view method, Transact signs and
// sends a state-changing one and Estimate dry-runs it without signing.
type Contract interface {
	Address() common.Address
	Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
	Transact(ctx context.Context, method string, args ...interface{}) (*types.Transaction, error)
	Estimate(ctx context.Context, method string, args ...interface{}) (uint64, error)
}

// Waiter blocks until a transaction is mined.
type Waiter interface {
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// HandleSet holds one handle per contract, all bound to the same signer.
type HandleSet struct {
	From common.Address

	SPAYToken         Contract
	ETFToken          Contract
	PayrollProcessor  Contract
	CollateralManager Contract
	InvestmentManager Contract
	SavingsManager    Contract
	RoleManager       Contract

	Waiter Waiter
}

// Wait blocks until tx is mined and returns its receipt.
func (h *HandleSet) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if h.Waiter == nil {
		return nil, errors.New("no receipt waiter configured")
	}
	return h.Waiter.WaitMined(ctx, tx)
}

// Get returns the handle for name, or nil when unknown.
func (h *HandleSet) Get(name Name) Contract {
	switch name {
	case SPAYToken:
		return h.SPAYToken
	case ETFToken:
		return h.ETFToken
	case PayrollProcessor:
		return h.PayrollProcessor
	case CollateralManager:
		return h.CollateralManager
	case InvestmentManager:
		return h.InvestmentManager
	case SavingsManager:
		return h.SavingsManager
	case RoleManager:
		return h.RoleManager
	}
	return nil
}

// Binder builds handle sets for the configured contract addresses.
type Binder struct {
	backend        Backend
	addresses      config.ContractAddresses
	abis           map[Name]abi.ABI
	receiptTimeout time.Duration
}

// NewBinder parses the embedded ABIs once. A zero receiptTimeout waits as long
// as the caller's context allows.
func NewBinder(backend Backend, addresses config.ContractAddresses, receiptTimeout time.Duration) (*Binder, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrInitialization)
	}
	abis, err := ParseABIs()
	if err != nil {
		return nil, err
	}
	return &Binder{
		backend:        backend,
		addresses:      addresses.Normalized(),
		abis:           abis,
		receiptTimeout: receiptTimeout,
	}, nil
}

// Bind returns handles for all seven contracts signing with opts. A nil opts
// yields read-only handles.
func (b *Binder) Bind(opts *bind.TransactOpts) (*HandleSet, error) {
	addrs := map[Name]string{
		SPAYToken:         b.addresses.SPAYToken,
		ETFToken:          b.addresses.ETFToken,
		PayrollProcessor:  b.addresses.PayrollProcessor,
		CollateralManager: b.addresses.CollateralManager,
		InvestmentManager: b.addresses.InvestmentManager,
		SavingsManager:    b.addresses.SavingsManager,
		RoleManager:       b.addresses.RoleManager,
	}

	handles := make(map[Name]Contract, len(Names))
	for _, name := range Names {
		parsed, ok := b.abis[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing abi for %s", ErrInitialization, name)
		}
		raw := addrs[name]
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("%w: %s address %q is malformed", ErrInitialization, name, raw)
		}
		address := common.HexToAddress(raw)
		handles[name] = &Handle{
			name:    name,
			address: address,
			abi:     parsed,
			backend: b.backend,
			bound:   bind.NewBoundContract(address, parsed, b.backend, b.backend, b.backend),
			opts:    opts,
		}
	}

	set := &HandleSet{
		SPAYToken:         handles[SPAYToken],
		ETFToken:          handles[ETFToken],
		PayrollProcessor:  handles[PayrollProcessor],
		CollateralManager: handles[CollateralManager],
		InvestmentManager: handles[InvestmentManager],
		SavingsManager:    handles[SavingsManager],
		RoleManager:       handles[RoleManager],
		Waiter:            &minedWaiter{backend: b.backend, timeout: b.receiptTimeout},
	}
	if opts != nil {
		set.From = opts.From
	}
	return set, nil
}

// Handle is a Contract backed by go-ethereum's BoundContract.
type Handle struct {
	name    Name
	address common.Address
	abi     abi.ABI
	backend Backend
	bound   *bind.BoundContract
	opts    *bind.TransactOpts
}

func (h *Handle) Address() common.Address { return h.address }

func (h *Handle) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	callOpts := &bind.CallOpts{Context: ctx}
	if h.opts != nil {
		callOpts.From = h.opts.From
	}
	var out []interface{}
	if err := h.bound.Call(callOpts, &out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handle) Transact(ctx context.Context, method string, args ...interface{}) (*types.Transaction, error) {
	if h.opts == nil {
		return nil, ErrReadOnly
	}
	opts := *h.opts
	opts.Context = ctx
	return h.bound.Transact(&opts, method, args...)
}

func (h *Handle) Estimate(ctx context.Context, method string, args ...interface{}) (uint64, error) {
	input, err := h.abi.Pack(method, args...)
	if err != nil {
		return 0, fmt.Errorf("pack %s.%s: %w", h.name, method, err)
	}
	msg := ethereum.CallMsg{To: &h.address, Data: input}
	if h.opts != nil {
		msg.From = h.opts.From
	}
	return h.backend.EstimateGas(ctx, msg)
}

type minedWaiter struct {
	backend bind.DeployBackend
	timeout time.Duration
}

func (w *minedWaiter) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return bind.WaitMined(ctx, w.backend, tx)
}
