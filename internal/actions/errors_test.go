package actions

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"trustpay/internal/wallet"
)

type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string  { return e.msg }
func (e *codedError) ErrorCode() int { return e.code }

type revertError struct{}

func (revertError) Error() string          { return "reverted" }
func (revertError) ErrorData() interface{} { return "0x08c379a0" }

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, ""},
		{&codedError{code: wallet.CodeUserRejected, msg: "User rejected the request."}, CodeActionRejected},
		{fmt.Errorf("sign: %w", wallet.ErrUserRejected), CodeActionRejected},
		{errors.New("insufficient funds for gas * price + value"), CodeInsufficientFunds},
		{errors.New("failed to estimate gas needed: execution reverted"), CodeUnpredictableGas},
		{errors.New("gas required exceeds allowance (30000000)"), CodeUnpredictableGas},
		{errors.New("execution reverted: ERC20: transfer amount exceeds balance"), CodeCallException},
		{revertError{}, CodeCallException},
		{fmt.Errorf("wait: %w", ErrTransactionFailed), CodeCallException},
		{context.DeadlineExceeded, CodeNetworkError},
		{errors.New("dial tcp 10.0.0.1:8545: connect: connection refused"), CodeNetworkError},
		{&Error{Prefix: "inner", Code: CodeInsufficientFunds}, CodeInsufficientFunds},
		{errors.New("something odd"), ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classify(tc.err), "%v", tc.err)
	}
}

func TestEstimateCodeTreatsRevertAsUnpredictable(t *testing.T) {
	assert.Equal(t, CodeUnpredictableGas, estimateCode(errors.New("execution reverted")))
	assert.Equal(t, CodeNetworkError, estimateCode(errors.New("connection refused")))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("boom")
	assert.Equal(t, "Failed to lock savings: boom", (&Error{Prefix: "Failed to lock savings", Err: cause}).Error())
	assert.Equal(t, "Failed to lock savings: Contract call reverted. Details: boom",
		(&Error{Prefix: "Failed to lock savings", Code: CodeCallException, Err: cause}).Error())
	assert.Equal(t, "Failed to lock savings: Unable to estimate gas",
		(&Error{Prefix: "Failed to lock savings", Code: CodeUnpredictableGas}).Error())
	assert.Equal(t, "Failed to lock savings (hash: 0xabc). Details: boom",
		(&Error{Prefix: "Failed to lock savings", TxHash: "0xabc", Err: cause}).Error())
}

func TestErrorIsMatchesCodeSentinel(t *testing.T) {
	err := fmt.Errorf("outer: %w", &Error{Prefix: "p", Code: CodeUnpredictableGas})
	assert.ErrorIs(t, err, ErrUnpredictableGas)
	assert.NotErrorIs(t, err, ErrCallException)
}
