package main

import (
	"github.com/spf13/cobra"

	"trustpay/internal/session"
	"trustpay/internal/wallet"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the configured wallet and print the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		state, err := a.connector.Connect(ctx)
		if err != nil {
			return err
		}
		balances, err := a.session.RefreshBalances(ctx, a.client)
		if err != nil {
			a.logger.Sugar().Warnw("balances unavailable", "error", err)
		}
		return printJSON(cmd.OutOrStdout(), struct {
			Account     string           `json:"account"`
			Short       string           `json:"short"`
			ChainID     uint64           `json:"chainId"`
			ExplorerURL string           `json:"explorerUrl"`
			Balances    session.Balances `json:"balances"`
		}{
			Account:     state.Account,
			Short:       wallet.FormatAddress(state.Account),
			ChainID:     state.ChainID,
			ExplorerURL: a.cfg.Chain.AddressURL(state.Account),
			Balances:    balances,
		})
	},
}
