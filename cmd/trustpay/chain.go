package main

import (
	"github.com/spf13/cobra"

	"trustpay/internal/config"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the target chain and contract addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			config.ChainConfig
			HexID     string                   `json:"hexId"`
			Contracts config.ContractAddresses `json:"contracts"`
		}{cfg.Chain, cfg.Chain.HexID(), cfg.Contracts})
	},
}
