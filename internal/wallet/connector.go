package wallet

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"trustpay/internal/config"
	"trustpay/internal/notify"
)

// ConnectionState is the wallet connection as seen by the rest of the
// service. The zero value is the disconnected state.
type ConnectionState struct {
	Account      string `json:"account"`
	ChainID      uint64 `json:"chainId"`
	IsConnected  bool   `json:"isConnected"`
	IsConnecting bool   `json:"isConnecting"`
}

// OnChain reports whether the state is connected to the given chain.
func (s ConnectionState) OnChain(chainID uint64) bool {
	return s.IsConnected && s.ChainID == chainID
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

type addChainParams struct {
	ChainID           string                `json:"chainId"`
	ChainName         string                `json:"chainName"`
	NativeCurrency    config.NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string              `json:"rpcUrls"`
	BlockExplorerURLs []string              `json:"blockExplorerUrls,omitempty"`
}

// Connector drives the connect / switch-chain / disconnect sequence.
type Connector struct {
	provider Provider
	chain    config.ChainConfig
	notifier notify.Notifier
	logger   *zap.Logger

	mu        sync.RWMutex
	state     ConnectionState
	listeners []func(ConnectionState)
}

type Option func(*Connector)

func WithNotifier(n notify.Notifier) Option {
	return func(c *Connector) { c.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConnector builds a connector for the configured chain. A nil provider
// models a browser without an injected wallet.
func NewConnector(provider Provider, chain config.ChainConfig, opts ...Option) *Connector {
	c := &Connector{
		provider: provider,
		chain:    chain,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "wallet"))
	return c
}

func (c *Connector) Chain() config.ChainConfig { return c.chain }

func (c *Connector) Provider() Provider { return c.provider }

func (c *Connector) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe registers fn to run after every state change.
func (c *Connector) Subscribe(fn func(ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Connect requests accounts, moves the wallet to the configured chain when
// needed and records the resulting connection.
func (c *Connector) Connect(ctx context.Context) (ConnectionState, error) {
	if c.provider == nil {
		notify.Alert(c.notifier, "Wallet Not Found",
			"Please install MetaMask or another compatible wallet to use this application.")
		return c.State(), ErrWalletNotFound
	}

	c.mu.Lock()
	if c.state.IsConnecting {
		c.mu.Unlock()
		return c.State(), ErrConnectInProgress
	}
	c.state.IsConnecting = true
	c.mu.Unlock()
	c.emit()

	account, chainID, err := c.connect(ctx)

	c.mu.Lock()
	c.state.IsConnecting = false
	if err == nil {
		c.state.Account = account
		c.state.ChainID = chainID
		c.state.IsConnected = true
	}
	c.mu.Unlock()
	c.emit()

	if err != nil {
		c.logger.Warn("wallet connection failed", zap.Error(err))
		notify.Alert(c.notifier, "Connection Failed", "Failed to connect to your wallet. Please try again.")
		return c.State(), err
	}

	c.logger.Info("wallet connected", zap.String("account", account), zap.Uint64("chain_id", chainID))
	notify.Info(c.notifier, "Wallet Connected", "Connected to "+FormatAddress(account))
	return c.State(), nil
}

func (c *Connector) connect(ctx context.Context) (string, uint64, error) {
	var accounts []string
	if err := c.provider.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return "", 0, wrapRequest("request accounts", err)
	}
	if len(accounts) == 0 {
		return "", 0, ErrNoAccounts
	}

	chainID, err := c.readChainID(ctx)
	if err != nil {
		return "", 0, err
	}

	if chainID != c.chain.ID {
		if err := c.SwitchChain(ctx); err != nil {
			return "", 0, err
		}
	}

	chainID, err = c.readChainID(ctx)
	if err != nil {
		return "", 0, err
	}
	return accounts[0], chainID, nil
}

func (c *Connector) readChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.provider.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return 0, wrapRequest("read chain id", err)
	}
	return uint64(id), nil
}

// SwitchChain asks the wallet to switch to the configured chain and adds the
// chain first when the wallet does not know it (code 4902).
func (c *Connector) SwitchChain(ctx context.Context) error {
	if c.provider == nil {
		return ErrWalletNotFound
	}

	err := c.provider.CallContext(ctx, nil, "wallet_switchEthereumChain", switchChainParams{ChainID: c.chain.HexID()})
	if err == nil {
		return nil
	}
	if code, ok := ErrorCode(err); !ok || code != CodeUnrecognizedChain {
		return wrapRequest("switch chain", err)
	}

	c.logger.Info("chain unknown to wallet, adding it", zap.String("chain", c.chain.Name))

	params := addChainParams{
		ChainID:        c.chain.HexID(),
		ChainName:      c.chain.Name,
		NativeCurrency: c.chain.NativeCurrency,
		RPCURLs:        c.chain.RPCURLs,
	}
	if c.chain.BlockExplorerURL != "" {
		params.BlockExplorerURLs = []string{c.chain.BlockExplorerURL}
	}
	if err := c.provider.CallContext(ctx, nil, "wallet_addEthereumChain", params); err != nil {
		return wrapRequest("add chain", err)
	}
	return nil
}

// Disconnect clears the connection. There is no on-chain effect.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	c.state = ConnectionState{}
	c.mu.Unlock()
	c.emit()

	c.logger.Info("wallet disconnected")
	notify.Info(c.notifier, "Wallet Disconnected", "Your wallet has been disconnected.")
}

// HandleAccountsChanged reacts to the wallet's accountsChanged event. An empty
// list means the user disconnected the wallet.
func (c *Connector) HandleAccountsChanged(accounts []string) {
	if len(accounts) == 0 {
		c.Disconnect()
		return
	}

	c.mu.Lock()
	if !c.state.IsConnected || strings.EqualFold(accounts[0], c.state.Account) {
		c.mu.Unlock()
		return
	}
	c.state.Account = accounts[0]
	c.mu.Unlock()
	c.emit()

	c.logger.Info("wallet account changed", zap.String("account", accounts[0]))
	notify.Info(c.notifier, "Account Changed", "Switched to "+FormatAddress(accounts[0]))
}

// HandleChainChanged reacts to the wallet's chainChanged event.
func (c *Connector) HandleChainChanged(chainIDHex string) {
	chainID, err := hexutil.DecodeUint64(chainIDHex)
	if err != nil {
		c.logger.Warn("ignoring malformed chain id", zap.String("chain_id", chainIDHex), zap.Error(err))
		return
	}

	c.mu.Lock()
	if !c.state.IsConnected || c.state.ChainID == chainID {
		c.mu.Unlock()
		return
	}
	c.state.ChainID = chainID
	c.mu.Unlock()
	c.emit()

	c.logger.Info("wallet chain changed", zap.Uint64("chain_id", chainID))
	if chainID != c.chain.ID {
		notify.Alert(c.notifier, "Network Changed",
			fmt.Sprintf("Please switch to %s to use this application.", c.chain.Name))
		return
	}
	notify.Info(c.notifier, "Network Changed", "Connected to "+c.chain.Name)
}

func (c *Connector) emit() {
	c.mu.RLock()
	state := c.state
	listeners := make([]func(ConnectionState), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// FormatAddress shortens an address for display: 0x1234...abcd.
func FormatAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
