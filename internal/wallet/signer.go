package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// signTimeout bounds how long the wallet may take to approve a signature.
const signTimeout = 2 * time.Minute

var ErrSignerMismatch = errors.New("wallet signed with a different account")

// KeyTransactor builds transact options from a hex private key.
func KeyTransactor(hexKey string, chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := parsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	return opts, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// KeystoreTransactor unlocks an account from an encrypted keystore directory.
// An empty account selects the first one found.
func KeystoreTransactor(dir, account, passphrase string, chainID *big.Int) (*bind.TransactOpts, error) {
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	all := ks.Accounts()
	if len(all) == 0 {
		return nil, fmt.Errorf("keystore %s holds no accounts", dir)
	}

	selected := all[0]
	if account != "" {
		found := false
		want := common.HexToAddress(account)
		for _, a := range all {
			if a.Address == want {
				selected, found = a, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("account %s not in keystore", account)
		}
	}

	if err := ks.Unlock(selected, passphrase); err != nil {
		return nil, fmt.Errorf("unlock keystore: %w", err)
	}
	opts, err := bind.NewKeyStoreTransactorWithChainID(ks, accounts.Account{Address: selected.Address}, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	return opts, nil
}

type signTxArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data"`
	ChainID              *hexutil.Big    `json:"chainId"`
}

type signTxResult struct {
	Raw hexutil.Bytes `json:"raw"`
}

// WalletTransactor returns transact options whose signatures come from the
// connected wallet via eth_signTransaction, so the key never leaves it.
func WalletTransactor(provider Provider, from common.Address, chainID *big.Int) *bind.TransactOpts {
	signer := types.LatestSignerForChainID(chainID)
	return &bind.TransactOpts{
		From: from,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != from {
				return nil, bind.ErrNotAuthorized
			}
			ctx, cancel := context.WithTimeout(context.Background(), signTimeout)
			defer cancel()

			var raw json.RawMessage
			if err := provider.CallContext(ctx, &raw, "eth_signTransaction", buildSignArgs(from, tx, chainID)); err != nil {
				return nil, wrapRequest("sign transaction", err)
			}
			signed, err := decodeSigned(raw)
			if err != nil {
				return nil, err
			}
			sender, err := types.Sender(signer, signed)
			if err != nil {
				return nil, fmt.Errorf("recover signer: %w", err)
			}
			if sender != from {
				return nil, fmt.Errorf("%w: %s", ErrSignerMismatch, sender.Hex())
			}
			return signed, nil
		},
	}
}

func buildSignArgs(from common.Address, tx *types.Transaction, chainID *big.Int) signTxArgs {
	args := signTxArgs{
		From:    from,
		To:      tx.To(),
		Gas:     hexutil.Uint64(tx.Gas()),
		Value:   (*hexutil.Big)(tx.Value()),
		Nonce:   hexutil.Uint64(tx.Nonce()),
		Data:    tx.Data(),
		ChainID: (*hexutil.Big)(chainID),
	}
	if tx.Type() == types.DynamicFeeTxType {
		args.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap())
		args.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap())
	} else {
		args.GasPrice = (*hexutil.Big)(tx.GasPrice())
	}
	return args
}

// decodeSigned accepts both the {"raw": ...} object geth and clef return and
// a bare hex string.
func decodeSigned(raw json.RawMessage) (*types.Transaction, error) {
	var encoded hexutil.Bytes
	var res signTxResult
	if err := json.Unmarshal(raw, &res); err == nil && len(res.Raw) > 0 {
		encoded = res.Raw
	} else if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("decode signed transaction: %w", err)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(encoded); err != nil {
		return nil, fmt.Errorf("decode signed transaction: %w", err)
	}
	return tx, nil
}
