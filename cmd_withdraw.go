package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lotus-sign/filsign/pkg/actors"
	"github.com/lotus-sign/filsign/pkg/fil"
)

// newWithdrawCmd is the top-level shortcut for `actor withdraw`.
func newWithdrawCmd(a *app) *cobra.Command {
	cmd := newActorWithdrawCmd(a)
	cmd.Use = "withdraw"
	return cmd
}

func newMarketWithdrawCmd(a *app) *cobra.Command {
	var (
		flags  sendFlags
		addr   string
		amount string
		show   bool
	)
	cmd := &cobra.Command{
		Use:   "market-withdraw",
		Short: "Withdraw storage market escrow of a provider or client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := a.parseAddress(addr)
			if err != nil {
				return err
			}

			if show {
				client, err := a.node(cmd.Context())
				if err != nil {
					return err
				}
				balance, err := client.StateMarketBalance(cmd.Context(), target)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Escrow: %s\nLocked: %s\nAvailable: %s\n",
					balance.Escrow.Format(), balance.Locked.Format(), balance.Escrow.Sub(balance.Locked).Format())
				return nil
			}

			value, err := fil.ParseFIL(amount)
			if err != nil {
				return err
			}
			call, err := actors.MarketWithdraw(target, value)
			if err != nil {
				return err
			}
			return flags.run(cmd, a, call)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&addr, "address", "", "provider or client address holding the escrow")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to withdraw (FIL)")
	cmd.Flags().BoolVar(&show, "show", false, "only print the market balance")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}
