package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"trustpay/internal/config"
)

var roleCmd = &cobra.Command{
	Use:   "role [address]",
	Short: "Resolve whether an account is an employer or an employee",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// reads go through the session handles, so connect even for a foreign address
		if _, err := a.connector.Connect(ctx); err != nil {
			return err
		}
		account, err := a.session.Account()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			raw := config.NormalizeAddress(args[0])
			if !common.IsHexAddress(raw) {
				return fmt.Errorf("invalid address %q", args[0])
			}
			account = common.HexToAddress(raw)
		}

		role, err := a.client.ResolveRole(ctx, account)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			Account string `json:"account"`
			Role    string `json:"role"`
		}{account.Hex(), role.String()})
	},
}
