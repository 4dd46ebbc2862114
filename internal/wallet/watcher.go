package wallet

import (
	"context"
	"slices"
	"sync"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// Event bus topics mirroring the EIP-1193 provider events.
const (
	TopicAccountsChanged = "wallet:accountsChanged"
	TopicChainChanged    = "wallet:chainChanged"
)

// Attach subscribes the connector's event handlers to bus.
func (c *Connector) Attach(bus EventBus.Bus) error {
	if err := bus.Subscribe(TopicAccountsChanged, c.HandleAccountsChanged); err != nil {
		return err
	}
	return bus.Subscribe(TopicChainChanged, c.HandleChainChanged)
}

// Detach removes the handlers registered by Attach.
func (c *Connector) Detach(bus EventBus.Bus) {
	_ = bus.Unsubscribe(TopicAccountsChanged, c.HandleAccountsChanged)
	_ = bus.Unsubscribe(TopicChainChanged, c.HandleChainChanged)
}

// Watcher polls the wallet for account and chain changes and publishes them
// on the bus. JSON-RPC wallets have no push events, so polling stands in for
// provider.on(...).
type Watcher struct {
	provider Provider
	bus      EventBus.Bus
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	primed   bool
	accounts []string
	chainID  uint64
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewWatcher(provider Provider, bus EventBus.Bus, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		provider: provider,
		bus:      bus,
		interval: interval,
		logger:   logger.With(zap.String("component", "wallet-watcher")),
	}
}

// Start launches the polling loop. It is a no-op if already running.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

// Stop ends the polling loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Debug("wallet poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll reads accounts and chain id once and publishes whatever changed since
// the previous poll. The first poll only records a baseline.
func (w *Watcher) Poll(ctx context.Context) error {
	var accounts []string
	if err := w.provider.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return wrapRequest("poll accounts", err)
	}
	var chainID hexutil.Uint64
	if err := w.provider.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		return wrapRequest("poll chain id", err)
	}

	w.mu.Lock()
	primed := w.primed
	accountsChanged := primed && !slices.Equal(accounts, w.accounts)
	chainChanged := primed && uint64(chainID) != w.chainID
	w.primed = true
	w.accounts = accounts
	w.chainID = uint64(chainID)
	w.mu.Unlock()

	if accountsChanged {
		if accounts == nil {
			accounts = []string{}
		}
		w.bus.Publish(TopicAccountsChanged, accounts)
	}
	if chainChanged {
		w.bus.Publish(TopicChainChanged, chainID.String())
	}
	return nil
}
