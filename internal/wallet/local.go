package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// LocalProvider stands in for a browser wallet when the service signs with its
// own key. It answers account and chain requests itself and forwards anything
// else to Next, which may be nil.
type LocalProvider struct {
	Account common.Address
	ChainID uint64
	Next    Provider
}

func (p *LocalProvider) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	var value interface{}
	switch method {
	case "eth_requestAccounts", "eth_accounts":
		value = []string{p.Account.Hex()}
	case "eth_chainId":
		value = hexutil.Uint64(p.ChainID)
	case "wallet_switchEthereumChain", "wallet_addEthereumChain":
		return nil
	default:
		if p.Next == nil {
			return fmt.Errorf("%s: not supported by local signer", method)
		}
		return p.Next.CallContext(ctx, result, method, args...)
	}
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}
