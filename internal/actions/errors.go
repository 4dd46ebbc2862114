package actions

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"trustpay/internal/wallet"
)

// Code classifies why a chain interaction failed.
type Code string

const (
	CodeCallException     Code = "CALL_EXCEPTION"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeUnpredictableGas  Code = "UNPREDICTABLE_GAS_LIMIT"
	CodeActionRejected    Code = "ACTION_REJECTED"
	CodeNetworkError      Code = "NETWORK_ERROR"
)

var (
	ErrCallException     = errors.New("contract call reverted")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnpredictableGas  = errors.New("unpredictable gas limit")
	ErrActionRejected    = errors.New("action rejected")
	ErrNetwork           = errors.New("network error")

	// ErrTransactionFailed is the cause recorded when a mined receipt reports failure.
	ErrTransactionFailed = errors.New("transaction failed during execution")
	// ErrInvalidArgument marks arguments rejected before anything is sent.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrGuard marks a client-side role check that stopped a registration.
	ErrGuard = errors.New("role guard")
)

var codeText = map[Code]string{
	CodeCallException:     "Contract call reverted",
	CodeInsufficientFunds: "Insufficient funds to cover gas costs. Please ensure your wallet has enough funds",
	CodeUnpredictableGas:  "Unable to estimate gas",
	CodeActionRejected:    "Request rejected in wallet",
	CodeNetworkError:      "Network request failed",
}

var codeSentinel = map[Code]error{
	CodeCallException:     ErrCallException,
	CodeInsufficientFunds: ErrInsufficientFunds,
	CodeUnpredictableGas:  ErrUnpredictableGas,
	CodeActionRejected:    ErrActionRejected,
	CodeNetworkError:      ErrNetwork,
}

// Error is returned by every action. Its message always starts with Prefix.
type Error struct {
	Prefix string
	Code   Code
	TxHash string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Prefix)
	text := codeText[e.Code]
	if text != "" {
		b.WriteString(": ")
		b.WriteString(text)
	}
	if e.TxHash != "" {
		fmt.Fprintf(&b, " (hash: %s)", e.TxHash)
	}
	if e.Err != nil {
		if text != "" || e.TxHash != "" {
			b.WriteString(". Details: ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Code, so callers can test errors.Is(err, ErrCallException).
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinel[e.Code]
	return ok && sentinel == target
}

// GuardError is a client-side role check that stopped a request before submission.
type GuardError struct {
	Reason string
}

func (g *GuardError) Error() string { return g.Reason }

func (g *GuardError) Is(target error) bool { return target == ErrGuard }

func guard(reason string) error { return &GuardError{Reason: reason} }

func fail(prefix string, err error) error {
	return &Error{Prefix: prefix, Code: classify(err), Err: err}
}

// classify maps provider and node errors onto a Code. Unknown errors get no
// code and surface with their own message.
func classify(err error) Code {
	if err == nil {
		return ""
	}
	var actionErr *Error
	if errors.As(err, &actionErr) && actionErr.Code != "" {
		return actionErr.Code
	}
	if wallet.IsUserRejected(err) || errors.Is(err, wallet.ErrUserRejected) {
		return CodeActionRejected
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return CodeInsufficientFunds
	case strings.Contains(msg, "failed to estimate gas"), strings.Contains(msg, "gas required exceeds"):
		return CodeUnpredictableGas
	case strings.Contains(msg, "execution reverted"), errors.Is(err, ErrTransactionFailed):
		return CodeCallException
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return CodeCallException
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
		return CodeNetworkError
	}
	return ""
}

// estimateCode classifies a failed gas estimate. A revert during estimation
// means the node could not predict a gas limit.
func estimateCode(err error) Code {
	code := classify(err)
	if code == CodeCallException {
		return CodeUnpredictableGas
	}
	return code
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
