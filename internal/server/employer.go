package server

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"trustpay/internal/actions"
	"trustpay/internal/session"
	"trustpay/internal/units"
)

// Payroll schedule presets, in seconds.
var scheduleIntervals = map[string]int64{
	"weekly":    7 * 24 * 60 * 60,
	"bi-weekly": 14 * 24 * 60 * 60,
	"biweekly":  14 * 24 * 60 * 60,
	"monthly":   30 * 24 * 60 * 60,
}

const defaultSchedule = "bi-weekly"

type payrollScheduleRequest struct {
	Employee        string `json:"employee"`
	Amount          string `json:"amount"`
	Schedule        string `json:"schedule"`
	IntervalSeconds int64  `json:"intervalSeconds"`
}

func (req payrollScheduleRequest) interval() (*big.Int, error) {
	if req.IntervalSeconds < 0 {
		return nil, fmt.Errorf("%w: intervalSeconds must be positive", errBadRequest)
	}
	if req.IntervalSeconds > 0 {
		return big.NewInt(req.IntervalSeconds), nil
	}
	name := strings.ToLower(strings.TrimSpace(req.Schedule))
	if name == "" {
		name = defaultSchedule
	}
	seconds, ok := scheduleIntervals[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown schedule %q", errBadRequest, req.Schedule)
	}
	return big.NewInt(seconds), nil
}

type employeeRequest struct {
	Employee string `json:"employee"`
}

type batchPayrollRequest struct {
	Employees []string `json:"employees"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type releaseRequest struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

type userRequest struct {
	User string `json:"user"`
}

type recipientRequest struct {
	Recipient string `json:"recipient"`
}

type roleRequest struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}

func (s *Server) handleRegisterEmployer(w http.ResponseWriter, r *http.Request) {
	s.transact(w, r, s.employer, "register_employer",
		session.Labels{Title: "Success", Success: "Employer registered successfully", Failure: "Error"},
		s.client.RegisterAsEmployer)
}

func (s *Server) handleSetPayrollSchedule(w http.ResponseWriter, r *http.Request) {
	var req payrollScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	employee, err := parseAddress("employee", req.Employee)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	interval, err := req.interval()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.transact(w, r, s.employer, "set_payroll_schedule",
		session.Labels{Title: "Schedule Set", Success: "Successfully set payroll schedule for " + employee.Hex() + ".", Failure: "Schedule Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.SetPayrollSchedule(ctx, employee, amount, interval)
		})
}

func (s *Server) handleProcessPayroll(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	employee, err := parseAddress("employee", req.Employee)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.transact(w, r, s.employer, "process_payroll",
		session.Labels{Title: "Payroll Processed", Success: "Successfully processed payroll for " + employee.Hex() + ".", Failure: "Payroll Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.ProcessPayroll(ctx, employee)
		})
}

func (s *Server) handleProcessBatchPayroll(w http.ResponseWriter, r *http.Request) {
	var req batchPayrollRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.Employees) == 0 {
		s.writeError(w, fmt.Errorf("%w: employees must not be empty", errBadRequest))
		return
	}
	employees := make([]common.Address, 0, len(req.Employees))
	for i, raw := range req.Employees {
		addr, err := parseAddress(fmt.Sprintf("employees[%d]", i), raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		employees = append(employees, addr)
	}
	s.transact(w, r, s.employer, "process_batch_payroll",
		session.Labels{Title: "Payroll Processed", Success: fmt.Sprintf("Successfully processed payroll for %d employees.", len(employees)), Failure: "Payroll Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.ProcessBatchPayroll(ctx, employees)
		})
}

func (s *Server) handleLockCollateral(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.transact(w, r, s.employer, "lock_collateral",
		session.Labels{Title: "Collateral Locked", Success: "Successfully locked " + req.Amount + " SPAY as collateral.", Failure: "Lock Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.LockCollateral(ctx, amount)
		})
}

func (s *Server) handleReleaseCollateral(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.transact(w, r, s.employer, "release_collateral",
		session.Labels{Title: "Collateral Released", Success: "Released " + req.Amount + " SPAY to " + recipient.Hex() + ".", Failure: "Release Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.ReleaseCollateral(ctx, amount, recipient)
		})
}

type collateralResponse struct {
	RatioBps    string `json:"ratioBps"`
	MinRatioBps string `json:"minRatioBps"`
	TotalLocked string `json:"totalLocked"`
	Healthy     bool   `json:"healthy"`
}

func (s *Server) handleCollateralStatus(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(ctx context.Context, _ common.Address) (interface{}, error) {
		var ratio, minRatio, total *big.Int
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			ratio, err = s.client.GetCollateralRatio(gctx)
			return err
		})
		g.Go(func() (err error) {
			minRatio, err = s.client.GetMinCollateralRatio(gctx)
			return err
		})
		g.Go(func() (err error) {
			total, err = s.client.GetTotalCollateralLocked(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return collateralResponse{
			RatioBps:    ratio.String(),
			MinRatioBps: minRatio.String(),
			TotalLocked: units.FormatToken(total),
			Healthy:     ratio.Cmp(minRatio) >= 0,
		}, nil
	})
}

func (s *Server) handleVerifyUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.transact(w, r, s.employer, "verify_user",
		session.Labels{Title: "User Verified", Success: user.Hex() + " passed KYC verification.", Failure: "Verification Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.VerifyUser(ctx, user)
		})
}

func (s *Server) handleCheckKYC(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.query(w, r, func(ctx context.Context, _ common.Address) (interface{}, error) {
		verified, err := s.client.CheckKYC(ctx, user)
		if err != nil {
			return nil, err
		}
		return struct {
			Account  string `json:"account"`
			Verified bool   `json:"verified"`
		}{user.Hex(), verified}, nil
	})
}

func (s *Server) handleDistributeYield(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.transact(w, r, s.employer, "distribute_yield",
		session.Labels{Title: "Yield Distributed", Success: "Distributed ETF yield to " + recipient.Hex() + ".", Failure: "Distribution Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.DistributeYield(ctx, recipient)
		})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	role, err := actions.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.transact(w, r, s.employer, "revoke_role",
		session.Labels{Title: "Role Revoked", Success: "Revoked " + role.String() + " from " + account.Hex() + ".", Failure: "Revoke Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.RevokeRole(ctx, role, account)
		})
}

func (s *Server) handleCheckRole(w http.ResponseWriter, r *http.Request) {
	role, err := actions.ParseRole(r.PathValue("role"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	account, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.query(w, r, func(ctx context.Context, _ common.Address) (interface{}, error) {
		has, err := s.client.CheckRole(ctx, role, account)
		if err != nil {
			return nil, err
		}
		return struct {
			Account string `json:"account"`
			Role    string `json:"role"`
			HasRole bool   `json:"hasRole"`
		}{account.Hex(), role.String(), has}, nil
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transact(w, r, s.employer, "pause",
		session.Labels{Title: "Contract Paused", Success: "Role manager is paused.", Failure: "Pause Failed"},
		s.client.PauseContract)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.transact(w, r, s.employer, "unpause",
		session.Labels{Title: "Contract Unpaused", Success: "Role manager is active again.", Failure: "Unpause Failed"},
		s.client.UnpauseContract)
}
