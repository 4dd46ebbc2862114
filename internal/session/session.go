// Package session ties the wallet connection to contract handles so actions
// always run against the currently connected signer.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"trustpay/internal/actions"
	"trustpay/internal/contracts"
	"trustpay/internal/notify"
	"trustpay/internal/units"
	"trustpay/internal/wallet"
)

var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrWrongNetwork = errors.New("wallet is connected to a different network")
)

// HandleBinder builds contract handles for a signer. *contracts.Binder satisfies it.
type HandleBinder interface {
	Bind(opts *bind.TransactOpts) (*contracts.HandleSet, error)
}

// SignerFactory returns transact options for the connected account.
type SignerFactory func(account common.Address, chainID *big.Int) (*bind.TransactOpts, error)

// WalletSigner routes signatures through the wallet provider.
func WalletSigner(provider wallet.Provider) SignerFactory {
	return func(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
		return wallet.WalletTransactor(provider, account, chainID), nil
	}
}

// FixedSigner uses preconfigured options and refuses any other account.
func FixedSigner(opts *bind.TransactOpts) SignerFactory {
	return func(account common.Address, _ *big.Int) (*bind.TransactOpts, error) {
		if account != opts.From {
			return nil, fmt.Errorf("connected account %s does not match configured signer %s", account.Hex(), opts.From.Hex())
		}
		return opts, nil
	}
}

// Balances are display-formatted token balances of the connected account.
type Balances struct {
	SPAY string `json:"spay"`
	ETF  string `json:"etf"`
}

// zeroBalances uses the same rendering as a refreshed zero balance.
var zeroBalances = Balances{SPAY: units.FormatToken(nil), ETF: units.FormatToken(nil)}

// Session rebuilds contract handles whenever the connector reports a new
// account or chain. Handles exist only while connected to the configured chain.
type Session struct {
	connector *wallet.Connector
	binder    HandleBinder
	signer    SignerFactory
	notifier  notify.Notifier
	logger    *zap.Logger
	chainID   *big.Int

	mu       sync.RWMutex
	handles  *contracts.HandleSet
	bindErr  error
	balances Balances
}

type Option func(*Session)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(connector *wallet.Connector, binder HandleBinder, signer SignerFactory, opts ...Option) *Session {
	s := &Session{
		connector: connector,
		binder:    binder,
		signer:    signer,
		logger:    zap.NewNop(),
		chainID:   new(big.Int).SetUint64(connector.Chain().ID),
		balances:  zeroBalances,
	}
	for _, opt := range opts {
		opt(s)
	}
	connector.Subscribe(s.onState)
	s.onState(connector.State())
	return s
}

func (s *Session) Connector() *wallet.Connector { return s.connector }

func (s *Session) onState(state wallet.ConnectionState) {
	if !state.IsConnected {
		s.mu.Lock()
		s.handles, s.bindErr = nil, nil
		s.balances = zeroBalances
		s.mu.Unlock()
		return
	}
	if !state.OnChain(s.chainID.Uint64()) {
		s.mu.Lock()
		s.handles, s.bindErr = nil, nil
		s.balances = zeroBalances
		s.mu.Unlock()
		return
	}

	account := common.HexToAddress(state.Account)
	s.mu.RLock()
	current := s.handles
	s.mu.RUnlock()
	if current != nil && current.From == account {
		return
	}

	set, err := s.bindFor(account)
	s.mu.Lock()
	s.handles, s.bindErr = set, err
	if current != nil {
		s.balances = zeroBalances
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("failed to initialize contracts", zap.String("account", account.Hex()), zap.Error(err))
		return
	}
	s.logger.Info("contracts bound", zap.String("account", account.Hex()))
}

func (s *Session) bindFor(account common.Address) (*contracts.HandleSet, error) {
	opts, err := s.signer(account, s.chainID)
	if err != nil {
		return nil, err
	}
	return s.binder.Bind(opts)
}

// Bind returns the handles for the connected signer. It implements actions.Binder.
func (s *Session) Bind(context.Context) (*contracts.HandleSet, error) {
	state := s.connector.State()
	if !state.IsConnected {
		return nil, ErrNotConnected
	}
	if !state.OnChain(s.chainID.Uint64()) {
		return nil, fmt.Errorf("%w: chain %d, expected %d", ErrWrongNetwork, state.ChainID, s.chainID.Uint64())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bindErr != nil {
		return nil, s.bindErr
	}
	if s.handles == nil {
		return nil, ErrNotConnected
	}
	return s.handles, nil
}

// Account returns the connected account, or ErrNotConnected.
func (s *Session) Account() (common.Address, error) {
	state := s.connector.State()
	if !state.IsConnected {
		return common.Address{}, ErrNotConnected
	}
	return common.HexToAddress(state.Account), nil
}

// Balances returns the last refreshed balances; "0.0" for both when
// disconnected or on a foreign chain.
func (s *Session) Balances() Balances {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances
}

// RefreshBalances reads both token balances of the connected account and
// stores them formatted with 18 decimals.
func (s *Session) RefreshBalances(ctx context.Context, client actions.Client) (Balances, error) {
	account, err := s.Account()
	if err != nil {
		return zeroBalances, err
	}
	raw, err := client.GetBalances(ctx, account)
	if err != nil {
		s.logger.Warn("failed to fetch balances", zap.Error(err))
		return s.Balances(), err
	}

	b := Balances{SPAY: units.FormatToken(raw.SPAY), ETF: units.FormatToken(raw.ETF)}
	s.mu.Lock()
	if state := s.connector.State(); state.IsConnected && state.OnChain(s.chainID.Uint64()) {
		s.balances = b
	}
	s.mu.Unlock()
	return b, nil
}
