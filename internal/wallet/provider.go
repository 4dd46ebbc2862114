// Package wallet connects to an EIP-1193 style wallet over JSON-RPC, keeps the
// connection state and produces transaction signers for the contract binder.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Wallet RPC error codes (EIP-1193 / EIP-3326).
const (
	CodeUserRejected      = 4001
	CodeUnrecognizedChain = 4902
)

var (
	ErrWalletNotFound    = errors.New("wallet not found: install MetaMask or another Web3 wallet")
	ErrUserRejected      = errors.New("user rejected wallet request")
	ErrNoAccounts        = errors.New("wallet returned no accounts")
	ErrConnectInProgress = errors.New("wallet connection already in progress")
)

// Provider is the request surface of an injected wallet. A dialed
// *rpc.Client satisfies it.
type Provider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Dial opens a JSON-RPC connection to the wallet endpoint.
func Dial(ctx context.Context, url string) (*rpc.Client, error) {
	if url == "" {
		return nil, ErrWalletNotFound
	}
	cli, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet: %w", err)
	}
	return cli, nil
}

// ErrorCode extracts the JSON-RPC error code carried by err.
func ErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

// IsUserRejected reports whether the wallet user declined the request.
func IsUserRejected(err error) bool {
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	code, ok := ErrorCode(err)
	return ok && code == CodeUserRejected
}

func wrapRequest(op string, err error) error {
	if code, ok := ErrorCode(err); ok && code == CodeUserRejected {
		return fmt.Errorf("%s: %w: %w", op, ErrUserRejected, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
