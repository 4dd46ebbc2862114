package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"trustpay/internal/actions"
	"trustpay/internal/config"
	"trustpay/internal/contracts"
	"trustpay/internal/logging"
	"trustpay/internal/notify"
	"trustpay/internal/session"
	"trustpay/internal/wallet"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	feed      *notify.Feed
	connector *wallet.Connector
	session   *session.Session
	client    actions.Client
	bus       EventBus.Bus
	watcher   *wallet.Watcher
	rpcHealth func(context.Context) error
	closers   []func()
}

func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.connector != nil && a.bus != nil {
		a.connector.Detach(a.bus)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// offlineBinder hands out empty handle sets when no RPC endpoint is
// configured; actions then run against the in-memory ledger.
type offlineBinder struct{}

func (offlineBinder) Bind(opts *bind.TransactOpts) (*contracts.HandleSet, error) {
	set := &contracts.HandleSet{}
	if opts != nil {
		set.From = opts.From
	}
	return set, nil
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, feed: notify.NewFeed(cfg.Service.NotificationLimit, logger)}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	chainID := new(big.Int).SetUint64(cfg.Chain.ID)

	opts, err := localSigner(cfg.Wallet, chainID)
	if err != nil {
		return err
	}

	var rpcClient *rpc.Client
	if cfg.Wallet.RPCURL != "" {
		rpcClient, err = wallet.Dial(ctx, cfg.Wallet.RPCURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rpcClient.Close)
	}

	var (
		provider wallet.Provider
		signer   session.SignerFactory
	)
	switch {
	case opts != nil:
		local := &wallet.LocalProvider{Account: opts.From, ChainID: cfg.Chain.ID}
		if rpcClient != nil {
			local.Next = rpcClient
		}
		provider, signer = local, session.FixedSigner(opts)
	case rpcClient != nil:
		provider, signer = rpcClient, session.WalletSigner(rpcClient)
	case common.IsHexAddress(cfg.Wallet.Account):
		account := common.HexToAddress(cfg.Wallet.Account)
		provider = &wallet.LocalProvider{Account: account, ChainID: cfg.Chain.ID}
		signer = session.FixedSigner(&bind.TransactOpts{From: account})
	}

	a.connector = wallet.NewConnector(provider, cfg.Chain, wallet.WithNotifier(a.feed), wallet.WithLogger(a.logger))

	var binder session.HandleBinder = offlineBinder{}
	if rpcClient != nil {
		eth := ethclient.NewClient(rpcClient)
		b, err := contracts.NewBinder(eth, cfg.Contracts, cfg.Wallet.ReceiptTimeout)
		if err != nil {
			return err
		}
		binder = b
		a.rpcHealth = func(ctx context.Context) error {
			_, err := eth.BlockNumber(ctx)
			return err
		}
	}
	if signer == nil {
		signer = func(account common.Address, _ *big.Int) (*bind.TransactOpts, error) {
			return nil, fmt.Errorf("no signer available for %s", account.Hex())
		}
	}

	a.session = session.New(a.connector, binder, signer, session.WithNotifier(a.feed), session.WithLogger(a.logger))
	if rpcClient != nil {
		a.client = actions.NewService(a.session, a.logger)
	} else {
		a.logger.Warn("no rpc_url configured; contract actions run against an in-memory ledger")
		var from common.Address
		if opts != nil {
			from = opts.From
		} else if common.IsHexAddress(cfg.Wallet.Account) {
			from = common.HexToAddress(cfg.Wallet.Account)
		}
		a.client = actions.NewFakeClient(from)
	}

	if provider != nil {
		a.bus = EventBus.New()
		if err := a.connector.Attach(a.bus); err != nil {
			return err
		}
		a.watcher = wallet.NewWatcher(provider, a.bus, cfg.Wallet.WatchInterval, a.logger)
	}
	return nil
}

func localSigner(cfg config.WalletConfig, chainID *big.Int) (*bind.TransactOpts, error) {
	switch {
	case cfg.PrivateKey != "":
		return wallet.KeyTransactor(cfg.PrivateKey, chainID)
	case cfg.KeystorePath != "":
		return wallet.KeystoreTransactor(cfg.KeystorePath, cfg.Account, cfg.KeystorePassphrase, chainID)
	}
	return nil, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
