package server

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"trustpay/internal/actions"
	"trustpay/internal/session"
	"trustpay/internal/units"
)

type registerEmployeeRequest struct {
	Employer string `json:"employer"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleRegisterEmployee(w http.ResponseWriter, r *http.Request) {
	var req registerEmployeeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	// the action validates and normalizes the employer so its messages stay intact
	s.transact(w, r, s.employee, "register_employee",
		session.Labels{Title: "Success", Success: "Employee registered successfully", Failure: "Error"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.RegisterAsEmployee(ctx, req.Employer)
		})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(ctx context.Context, _ common.Address) (interface{}, error) {
		return s.session.RefreshBalances(ctx, s.client)
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.transact(w, r, s.employee, "transfer_spay",
		session.Labels{Title: "Transfer Complete", Success: "Sent " + req.Amount + " SPAY to " + to.Hex() + ".", Failure: "Transfer Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.TransferSPAY(ctx, to, amount)
		})
}

func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
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
	s.transact(w, r, s.employee, "invest_etf",
		session.Labels{Title: "Investment Successful", Success: "Successfully invested " + req.Amount + " SPAY in ETF tokens.", Failure: "Investment Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.InvestInETF(ctx, amount)
		})
}

func (s *Server) handleWithdrawInvestment(w http.ResponseWriter, r *http.Request) {
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
	s.transact(w, r, s.employee, "withdraw_investment",
		session.Labels{Title: "Withdrawal Successful", Success: "Successfully withdrew " + req.Amount + " ETF tokens.", Failure: "Withdrawal Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.WithdrawInvestment(ctx, amount)
		})
}

func (s *Server) handleInvestment(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(ctx context.Context, account common.Address) (interface{}, error) {
		invested, err := s.client.GetUserInvestment(ctx, account)
		if err != nil {
			return nil, err
		}
		return struct {
			Invested string `json:"invested"`
		}{units.FormatToken(invested)}, nil
	})
}

func (s *Server) handleLockSavings(w http.ResponseWriter, r *http.Request) {
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
	s.transact(w, r, s.employee, "lock_savings",
		session.Labels{Title: "Savings Locked", Success: "Successfully locked " + req.Amount + " SPAY for 30 days.", Failure: "Lock Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			return s.client.LockSavings(ctx, amount)
		})
}

func (s *Server) handleWithdrawSavings(w http.ResponseWriter, r *http.Request) {
	s.transact(w, r, s.employee, "withdraw_savings",
		session.Labels{Title: "Savings Withdrawn", Success: "Successfully withdrew your locked SPAY tokens.", Failure: "Withdrawal Failed"},
		s.client.WithdrawSavings)
}

type savingsResponse struct {
	Amount               string `json:"amount"`
	UnlockTime           int64  `json:"unlockTime"`
	RemainingLockSeconds int64  `json:"remainingLockSeconds"`
	Unlocked             bool   `json:"unlocked"`
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(ctx context.Context, account common.Address) (interface{}, error) {
		info, err := s.client.GetSavingsInfo(ctx, account)
		if err != nil {
			return nil, err
		}
		return savingsResponse{
			Amount:               units.FormatToken(info.Amount),
			UnlockTime:           info.UnlockTime.Int64(),
			RemainingLockSeconds: info.RemainingLockTime.Int64(),
			Unlocked:             info.Amount.Sign() > 0 && info.RemainingLockTime.Sign() == 0,
		}, nil
	})
}

type yieldResponse struct {
	PriceUSD   string `json:"priceUsd"`
	DailyYield string `json:"dailyYield"`
}

func (s *Server) handleYield(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(ctx context.Context, account common.Address) (interface{}, error) {
		var price, daily *big.Int
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			price, err = s.client.GetETFPrice(gctx)
			return err
		})
		g.Go(func() (err error) {
			daily, err = s.client.GetETFYield(gctx, account)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return yieldResponse{PriceUSD: units.Format(price, actions.PriceDecimals), DailyYield: units.FormatToken(daily)}, nil
	})
}

type employeeRoleResponse struct {
	Account    string `json:"account"`
	IsEmployee bool   `json:"isEmployee"`
	Employer   string `json:"employer,omitempty"`
	KYC        bool   `json:"kycVerified"`
}

func (s *Server) handleEmployeeRole(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, func(ctx context.Context, account common.Address) (interface{}, error) {
		resp := employeeRoleResponse{Account: account.Hex()}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			resp.IsEmployee, err = s.client.CheckEmployeeRole(gctx, account)
			return err
		})
		g.Go(func() (err error) {
			resp.KYC, err = s.client.CheckKYC(gctx, account)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if resp.IsEmployee {
			employer, err := s.client.GetEmployerAddress(ctx, account)
			if err != nil {
				return nil, err
			}
			resp.Employer = employer.Hex()
		}
		return resp, nil
	})
}

func (s *Server) handleRenounceRole(w http.ResponseWriter, r *http.Request) {
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
	s.transact(w, r, s.employee, "renounce_role",
		session.Labels{Title: "Role Renounced", Success: "You no longer hold the " + role.String() + " role.", Failure: "Renounce Failed"},
		func(ctx context.Context) (*types.Receipt, error) {
			account, err := s.session.Account()
			if err != nil {
				return nil, err
			}
			return s.client.RenounceRole(ctx, role, account)
		})
}
