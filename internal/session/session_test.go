package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"trustpay/internal/actions"
	"trustpay/internal/config"
	"trustpay/internal/contracts"
	"trustpay/internal/notify"
	"trustpay/internal/wallet"
)

const (
	accountA = "0x60c977735cfBF44Cf5B33bD02a8B637765E7AbbB"
	accountB = "0x9bDA20E14700EbfD1B9A0900c3d54538F867bD59"
)

// walletStub answers connect requests for a fixed account and chain.
type walletStub struct {
	mu      sync.Mutex
	account string
	chainID string
}

func (w *walletStub) CallContext(_ context.Context, result interface{}, method string, _ ...interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var v interface{}
	switch method {
	case "eth_requestAccounts":
		v = []string{w.account}
	case "eth_chainId":
		v = w.chainID
	default:
		return errors.New("unsupported " + method)
	}
	raw, _ := json.Marshal(v)
	return json.Unmarshal(raw, result)
}

type recordingBinder struct {
	mu    sync.Mutex
	bound []common.Address
	err   error
}

func (b *recordingBinder) Bind(opts *bind.TransactOpts) (*contracts.HandleSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.bound = append(b.bound, opts.From)
	return &contracts.HandleSet{From: opts.From}, nil
}

func newTestSession(t *testing.T, binder HandleBinder) (*Session, *notify.Feed) {
	t.Helper()
	chain := config.ChainConfig{ID: 50002, Name: "Pharos Devnet", RPCURLs: []string{"https://devnet.dplabs-internal.com"}}
	feed := notify.NewFeed(20, nil)
	connector := wallet.NewConnector(&walletStub{account: accountA, chainID: "0xc352"}, chain, wallet.WithNotifier(feed))

	var seenChain *big.Int
	signer := func(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
		seenChain = chainID
		return &bind.TransactOpts{From: account}, nil
	}
	s := New(connector, binder, signer, WithNotifier(feed), WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() {
		if seenChain != nil {
			assert.Equal(t, int64(50002), seenChain.Int64())
		}
	})
	return s, feed
}

func TestBindRequiresConnection(t *testing.T) {
	s, _ := newTestSession(t, &recordingBinder{})
	_, err := s.Bind(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestHandlesFollowConnection(t *testing.T) {
	binder := &recordingBinder{}
	s, _ := newTestSession(t, binder)
	ctx := context.Background()

	_, err := s.Connector().Connect(ctx)
	require.NoError(t, err)

	set, err := s.Bind(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(accountA), set.From)

	s.Connector().HandleChainChanged("0x1")
	_, err = s.Bind(ctx)
	assert.ErrorIs(t, err, ErrWrongNetwork)

	s.Connector().HandleChainChanged("0xc352")
	set, err = s.Bind(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(accountA), set.From)

	s.Connector().HandleAccountsChanged([]string{accountB})
	set, err = s.Bind(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(accountB), set.From)

	s.Connector().Disconnect()
	_, err = s.Bind(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.Equal(t, []common.Address{
		common.HexToAddress(accountA),
		common.HexToAddress(accountA),
		common.HexToAddress(accountB),
	}, binder.bound)
}

func TestBindSurfacesInitializationFailure(t *testing.T) {
	s, _ := newTestSession(t, &recordingBinder{err: contracts.ErrInitialization})
	_, err := s.Connector().Connect(context.Background())
	require.NoError(t, err)

	_, err = s.Bind(context.Background())
	assert.ErrorIs(t, err, contracts.ErrInitialization)
}

func TestRefreshBalances(t *testing.T) {
	s, _ := newTestSession(t, &recordingBinder{})
	ctx := context.Background()
	client := actions.NewFakeClient(common.HexToAddress(accountA))
	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	client.Fund(common.HexToAddress(accountA), amount)

	_, err := s.RefreshBalances(ctx, client)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, Balances{SPAY: "0.0", ETF: "0.0"}, s.Balances())

	_, err = s.Connector().Connect(ctx)
	require.NoError(t, err)

	b, err := s.RefreshBalances(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, Balances{SPAY: "1.5", ETF: "0.0"}, b)
	assert.Equal(t, b, s.Balances())

	s.Connector().HandleChainChanged("0x1")
	assert.Equal(t, Balances{SPAY: "0.0", ETF: "0.0"}, s.Balances())

	s.Connector().HandleChainChanged("0xc352")
	_, err = s.RefreshBalances(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, "1.5", s.Balances().SPAY)

	s.Connector().Disconnect()
	assert.Equal(t, Balances{SPAY: "0.0", ETF: "0.0"}, s.Balances())
}

func TestTrackerRequiresConnection(t *testing.T) {
	s, feed := newTestSession(t, &recordingBinder{})
	tracker := s.Tracker("investment")

	called := false
	err := tracker.Run(context.Background(), Labels{Title: "Investment Successful", Success: "done", Failure: "Investment Failed"}, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, called)

	latest, _ := feed.Latest()
	assert.Equal(t, "Not Connected", latest.Title)
	assert.Equal(t, notify.VariantDestructive, latest.Variant)
}

func TestTrackerReportsProcessingAndOutcome(t *testing.T) {
	s, feed := newTestSession(t, &recordingBinder{})
	_, err := s.Connector().Connect(context.Background())
	require.NoError(t, err)
	tracker := s.Tracker("savings")

	var during bool
	err = tracker.Run(context.Background(), Labels{Title: "Savings Locked", Success: "Locked 10 SPAY", Failure: "Lock Failed"}, func(context.Context) error {
		during = tracker.IsProcessing()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, during)
	assert.False(t, tracker.IsProcessing())
	latest, _ := feed.Latest()
	assert.Equal(t, notify.Notification{Title: "Savings Locked", Description: "Locked 10 SPAY", Variant: notify.VariantDefault, Time: latest.Time}, latest)

	err = tracker.Run(context.Background(), Labels{Title: "Withdrawal"}, func(context.Context) error {
		return errors.New("Failed to withdraw savings: execution reverted")
	})
	require.Error(t, err)
	latest, _ = feed.Latest()
	assert.Equal(t, "Withdrawal Failed", latest.Title)
	assert.Equal(t, "Failed to withdraw savings: execution reverted", latest.Description)
}

func TestTrackerRejectsSecondActionWhileBusy(t *testing.T) {
	s, _ := newTestSession(t, &recordingBinder{})
	_, err := s.Connector().Connect(context.Background())
	require.NoError(t, err)
	tracker := s.Tracker("investment")

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- tracker.Run(context.Background(), Labels{Title: "Investment Successful"}, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	assert.True(t, tracker.IsProcessing())
	called := false
	err = tracker.Run(context.Background(), Labels{Title: "Investment Successful"}, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, called)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, tracker.IsProcessing())
}

func TestFixedSigner(t *testing.T) {
	opts := &bind.TransactOpts{From: common.HexToAddress(accountA)}
	factory := FixedSigner(opts)

	got, err := factory(common.HexToAddress(accountA), big.NewInt(1))
	require.NoError(t, err)
	assert.Same(t, opts, got)

	_, err = factory(common.HexToAddress(accountB), big.NewInt(1))
	assert.Error(t, err)
}
