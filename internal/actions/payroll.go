package actions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func (s *Service) SetPayrollSchedule(ctx context.Context, employee common.Address, amount, interval *big.Int) (*types.Receipt, error) {
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
	return s.submit(ctx, prefix, payrollProcessor, "setPayrollSchedule", employee, amount, interval)
}

func (s *Service) ProcessPayroll(ctx context.Context, employee common.Address) (*types.Receipt, error) {
	const prefix = "Failed to process payroll"
	if err := requireAddress(prefix, employee, "employee"); err != nil {
		return nil, err
	}
	return s.submit(ctx, prefix, payrollProcessor, "disbursePayroll", employee)
}

// ProcessBatchPayroll disburses to every employee in a single transaction.
func (s *Service) ProcessBatchPayroll(ctx context.Context, employees []common.Address) (*types.Receipt, error) {
	const prefix = "Failed to process batch payroll"
	if len(employees) == 0 {
		return nil, &Error{Prefix: prefix, Err: invalid("at least one employee is required")}
	}
	for _, e := range employees {
		if err := requireAddress(prefix, e, "employee"); err != nil {
			return nil, err
		}
	}
	return s.submit(ctx, prefix, payrollProcessor, "disbursePayrollBatch", employees)
}
