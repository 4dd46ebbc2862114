package actions

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"trustpay/internal/contracts"
)

// Binder yields the handle set for the current signer. Each call may rebuild
// handles, so no action holds on to one between invocations.
type Binder interface {
	Bind(ctx context.Context) (*contracts.HandleSet, error)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(ctx context.Context) (*contracts.HandleSet, error)

func (f BinderFunc) Bind(ctx context.Context) (*contracts.HandleSet, error) { return f(ctx) }

// StaticBinder always returns the same handle set.
func StaticBinder(set *contracts.HandleSet) Binder {
	return BinderFunc(func(context.Context) (*contracts.HandleSet, error) { return set, nil })
}

// Service implements Client against bound contracts.
type Service struct {
	binder Binder
	logger *zap.Logger
}

var _ Client = (*Service)(nil)

func NewService(binder Binder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{binder: binder, logger: logger}
}

const (
	spayToken         = contracts.SPAYToken
	etfToken          = contracts.ETFToken
	payrollProcessor  = contracts.PayrollProcessor
	collateralManager = contracts.CollateralManager
	investmentManager = contracts.InvestmentManager
	savingsManager    = contracts.SavingsManager
	roleManager       = contracts.RoleManager
)

func (s *Service) bind(ctx context.Context, prefix string) (*contracts.HandleSet, error) {
	set, err := s.binder.Bind(ctx)
	if err != nil {
		return nil, fail(prefix, err)
	}
	return set, nil
}

// submit sends one transaction and waits for it to be mined.
func (s *Service) submit(ctx context.Context, prefix string, name contracts.Name, method string, args ...interface{}) (*types.Receipt, error) {
	set, err := s.bind(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, set, prefix, name, method, args...)
}

func (s *Service) send(ctx context.Context, set *contracts.HandleSet, prefix string, name contracts.Name, method string, args ...interface{}) (*types.Receipt, error) {
	contract := set.Get(name)
	if contract == nil {
		return nil, fail(prefix, fmt.Errorf("%w: %s not bound", contracts.ErrInitialization, name))
	}
	tx, err := contract.Transact(ctx, method, args...)
	if err != nil {
		s.logger.Warn("transaction rejected",
			zap.String("method", method),
			zap.String("contract", contract.Address().Hex()),
			zap.Error(err))
		return nil, fail(prefix, err)
	}

	hash := tx.Hash().Hex()
	s.logger.Info("transaction submitted",
		zap.String("method", method),
		zap.String("contract", contract.Address().Hex()),
		zap.String("tx_hash", hash))

	receipt, err := set.Wait(ctx, tx)
	if err != nil {
		return nil, &Error{Prefix: prefix, Code: classify(err), TxHash: hash, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		s.logger.Warn("transaction failed", zap.String("method", method), zap.String("tx_hash", hash))
		return nil, &Error{Prefix: prefix, Code: CodeCallException, TxHash: hash, Err: ErrTransactionFailed}
	}
	s.logger.Info("transaction mined",
		zap.String("method", method),
		zap.String("tx_hash", hash),
		zap.Stringer("block", receipt.BlockNumber))
	return receipt, nil
}

// read runs a view method on a freshly bound handle.
func (s *Service) read(ctx context.Context, prefix string, name contracts.Name, method string, args ...interface{}) ([]interface{}, error) {
	set, err := s.bind(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return s.call(ctx, set, prefix, name, method, args...)
}

func (s *Service) call(ctx context.Context, set *contracts.HandleSet, prefix string, name contracts.Name, method string, args ...interface{}) ([]interface{}, error) {
	contract := set.Get(name)
	if contract == nil {
		return nil, fail(prefix, fmt.Errorf("%w: %s not bound", contracts.ErrInitialization, name))
	}
	out, err := contract.Call(ctx, method, args...)
	if err != nil {
		return nil, fail(prefix, err)
	}
	return out, nil
}

func (s *Service) readBig(ctx context.Context, prefix string, name contracts.Name, method string, args ...interface{}) (*big.Int, error) {
	out, err := s.read(ctx, prefix, name, method, args...)
	if err != nil {
		return nil, err
	}
	return decode[*big.Int](prefix, out, 0)
}

func (s *Service) readBool(ctx context.Context, prefix string, name contracts.Name, method string, args ...interface{}) (bool, error) {
	out, err := s.read(ctx, prefix, name, method, args...)
	if err != nil {
		return false, err
	}
	return decode[bool](prefix, out, 0)
}

// decode extracts output i of a call with the expected Go type.
func decode[T any](prefix string, out []interface{}, i int) (T, error) {
	var zero T
	if i >= len(out) {
		return zero, &Error{Prefix: prefix, Err: fmt.Errorf("expected at least %d outputs, got %d", i+1, len(out))}
	}
	v, ok := out[i].(T)
	if !ok {
		return zero, &Error{Prefix: prefix, Err: fmt.Errorf("unexpected output type %T", out[i])}
	}
	return v, nil
}

func requireAmount(prefix string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return &Error{Prefix: prefix, Err: invalid("amount must be positive")}
	}
	return nil
}

func requireAddress(prefix string, address common.Address, what string) error {
	if address == (common.Address{}) {
		return &Error{Prefix: prefix, Err: invalid("%s address is required", what)}
	}
	return nil
}
