package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"trustpay/internal/actions"
	"trustpay/internal/authcookie"
	"trustpay/internal/config"
	"trustpay/internal/idempotency"
	"trustpay/internal/session"
	"trustpay/internal/units"
	"trustpay/internal/wallet"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequest      = errors.New("bad request")
	errAccountMismatch = fmt.Errorf("%w: auth cookie belongs to a different account", session.ErrNotConnected)
)

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	TxHash string `json:"txHash,omitempty"`
}

type txResponse struct {
	Status      string `json:"status"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var actionErr *actions.Error
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, actions.ErrInvalidArgument), errors.Is(err, units.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, actions.ErrGuard):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotConnected), errors.Is(err, session.ErrWrongNetwork):
		return http.StatusPreconditionFailed
	case errors.Is(err, idempotency.ErrKeyReused):
		return http.StatusUnprocessableEntity
	case errors.Is(err, idempotency.ErrInFlight), errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &actionErr):
		return http.StatusBadGateway
	case errors.Is(err, wallet.ErrWalletNotFound):
		return http.StatusServiceUnavailable
	case wallet.IsUserRejected(err):
		return http.StatusForbidden
	case errors.Is(err, wallet.ErrConnectInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var actionErr *actions.Error
	if errors.As(err, &actionErr) {
		resp.Code = string(actionErr.Code)
		resp.TxHash = actionErr.TxHash
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid json payload", errBadRequest)
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, error) {
	normalized := config.NormalizeAddress(strings.TrimSpace(raw))
	if !common.IsHexAddress(normalized) {
		return common.Address{}, fmt.Errorf("%w: %s must be a valid address", errBadRequest, field)
	}
	return common.HexToAddress(normalized), nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	amount, err := units.ParseToken(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return amount, nil
}

// account returns the connected signer. Behind the cookie gate the cookie must
// name the same account.
func (s *Server) account(r *http.Request) (common.Address, error) {
	account, err := s.session.Account()
	if err != nil {
		return common.Address{}, err
	}
	if cookie, ok := authcookie.AccountFrom(r.Context()); ok && !strings.EqualFold(cookie, account.Hex()) {
		return common.Address{}, errAccountMismatch
	}
	return account, nil
}

// transact runs a write through the area tracker and answers with the mined receipt.
func (s *Server) transact(w http.ResponseWriter, r *http.Request, tracker *session.Tracker, action string, labels session.Labels, fn func(context.Context) (*types.Receipt, error)) {
	if _, err := s.account(r); err != nil {
		s.metrics.incAction(action, "rejected")
		s.writeError(w, err)
		return
	}

	var receipt *types.Receipt
	err := tracker.Run(r.Context(), labels, func(ctx context.Context) error {
		var err error
		receipt, err = fn(ctx)
		return err
	})
	if err != nil {
		status := "failed"
		switch {
		case errors.Is(err, actions.ErrGuard):
			status = "guarded"
		case errors.Is(err, session.ErrBusy):
			status = "busy"
		}
		s.metrics.incAction(action, status)
		s.writeError(w, err)
		return
	}

	s.metrics.incAction(action, "confirmed")
	resp := txResponse{
		Status:  "confirmed",
		TxHash:  receipt.TxHash.Hex(),
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		resp.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if base := strings.TrimRight(s.cfg.Chain.BlockExplorerURL, "/"); base != "" {
		resp.ExplorerURL = base + "/tx/" + resp.TxHash
	}
	writeJSON(w, http.StatusOK, resp)
}

// query answers a read for the connected account.
func (s *Server) query(w http.ResponseWriter, r *http.Request, fn func(context.Context, common.Address) (interface{}, error)) {
	account, err := s.account(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := fn(r.Context(), account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// idempotent replays the stored response when the request carries an
// idempotency key already seen for the same account and route. The key is
// reserved before the handler runs so a concurrent duplicate gets 409 instead
// of a second transaction. Only successful responses are kept.
func (s *Server) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotency.HeaderKey))
		if key == "" {
			next(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: unreadable body", errBadRequest))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))

		owner, _ := authcookie.AccountFrom(r.Context())
		if owner == "" {
			if account, err := s.session.Account(); err == nil {
				owner = account.Hex()
			}
		}
		ctx := r.Context()
		scoped := idempotency.ScopedKey(owner, r.Method, r.URL.Path, key)
		fingerprint := idempotency.Fingerprint(body)

		existing, err := s.store.Get(ctx, scoped)
		if err != nil {
			s.logger.Warn("idempotency lookup failed", zap.Error(err))
		}
		if existing != nil {
			s.replay(w, existing, fingerprint)
			return
		}

		now := s.now()
		reserved, err := s.store.Reserve(ctx, scoped, idempotency.Reservation(fingerprint, now, s.idempotencyWindow()))
		if err != nil {
			s.writeError(w, fmt.Errorf("reserve idempotency key: %w", err))
			return
		}
		if !reserved {
			existing, err := s.store.Get(ctx, scoped)
			if err != nil || existing == nil {
				s.writeError(w, idempotency.ErrInFlight)
				return
			}
			s.replay(w, existing, fingerprint)
			return
		}

		completed := false
		defer func() {
			if completed {
				return
			}
			if err := s.store.Release(context.WithoutCancel(ctx), scoped); err != nil {
				s.logger.Warn("idempotency release failed", zap.Error(err))
			}
		}()

		capture := &captureWriter{ResponseWriter: w}
		next(capture, r)
		if capture.status < 200 || capture.status >= 300 {
			return
		}

		record := idempotency.Record{
			StatusCode:  capture.status,
			Response:    capture.body.Bytes(),
			Fingerprint: fingerprint,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.idempotencyWindow()),
		}
		if err := s.store.Save(context.WithoutCancel(ctx), scoped, record); err != nil {
			s.logger.Warn("idempotency save failed", zap.Error(err))
			return
		}
		completed = true
	}
}

// replay answers from a stored record, or rejects the request when the key
// belongs to another body or its first request is still running.
func (s *Server) replay(w http.ResponseWriter, existing *idempotency.Record, fingerprint string) {
	switch {
	case !existing.Matches(fingerprint):
		s.writeError(w, idempotency.ErrKeyReused)
	case existing.Pending():
		s.writeError(w, idempotency.ErrInFlight)
	default:
		s.metrics.incReplay()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(existing.StatusCode)
		_, _ = w.Write(existing.Response)
	}
}

func (s *Server) idempotencyWindow() time.Duration {
	if s.cfg.Service.IdempotencyWindow > 0 {
		return s.cfg.Service.IdempotencyWindow
	}
	return 24 * time.Hour
}
