package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lotus-sign/filsign/pkg/actors"
	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/rpc"
)

func newActorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Inspect and manage a storage provider actor",
	}
	cmd.AddCommand(
		newActorInfoCmd(a),
		newActorWithdrawCmd(a),
		newActorSetOwnerCmd(a),
		newActorProposeChangeWorkerCmd(a),
		newActorConfirmChangeWorkerCmd(a),
	)
	return cmd
}

func newActorInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <miner>",
		Short: "Show the control addresses and available balance of a miner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			miner, err := a.parseAddress(args[0])
			if err != nil {
				return err
			}
			client, err := a.node(ctx)
			if err != nil {
				return err
			}
			info, err := client.StateMinerInfo(ctx, miner)
			if err != nil {
				return err
			}
			available, err := client.StateMinerAvailableBalance(ctx, miner)
			if err != nil {
				return err
			}
			describe := func(addr address.Address) string {
				return a.describeControl(ctx, client, addr)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendRow(table.Row{"Miner", miner})
			t.AppendRow(table.Row{"Owner", describe(info.Owner)})
			t.AppendRow(table.Row{"Worker", describe(info.Worker)})
			if !info.NewWorker.Empty() {
				effective := fmt.Sprintf("effective at %d", info.WorkerChangeEpoch)
				if head, err := client.ChainHead(ctx); err == nil && head.Height < info.WorkerChangeEpoch {
					effective += fmt.Sprintf(", in %d epochs", info.WorkerChangeEpoch-head.Height)
				}
				t.AppendRow(table.Row{"New worker", fmt.Sprintf("%s (%s)", describe(info.NewWorker), effective)})
			}
			for i, ctrl := range info.ControlAddresses {
				t.AppendRow(table.Row{fmt.Sprintf("Control %d", i), describe(ctrl)})
			}
			t.AppendRow(table.Row{"Sector size", info.SectorSize})
			t.AppendRow(table.Row{"Available balance", available.Format()})
			t.Render()
			return nil
		},
	}
}

// describeControl appends the key address behind an ID address. Actors
// without one, such as multisigs, print as is.
func (a *app) describeControl(ctx context.Context, client *rpc.Client, addr address.Address) string {
	if addr.Protocol() != address.ID {
		return addr.String()
	}
	key, err := client.StateAccountKey(ctx, addr)
	if err != nil {
		a.lg.Debug("no account key", "address", addr, "error", err)
		return addr.String()
	}
	return fmt.Sprintf("%s (%s)", addr, key)
}

func newActorWithdrawCmd(a *app) *cobra.Command {
	var (
		flags  sendFlags
		miner  string
		amount string
	)
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw available miner balance to the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			minerAddr, err := a.parseAddress(miner)
			if err != nil {
				return err
			}
			value, err := fil.ParseFIL(amount)
			if err != nil {
				return err
			}
			call, err := actors.MinerWithdraw(minerAddr, value)
			if err != nil {
				return err
			}
			return flags.run(cmd, a, call)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&miner, "miner", "", "miner actor address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to withdraw (FIL)")
	_ = cmd.MarkFlagRequired("miner")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newActorSetOwnerCmd(a *app) *cobra.Command {
	var (
		flags    sendFlags
		miner    string
		newOwner string
		really   bool
	)
	cmd := &cobra.Command{
		Use:   "set-owner",
		Short: "Propose a new owner; run again from the new owner to confirm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !requireReallyDoIt(cmd, really) {
				return nil
			}
			minerAddr, err := a.parseAddress(miner)
			if err != nil {
				return err
			}
			ownerAddr, err := a.parseAddress(newOwner)
			if err != nil {
				return err
			}
			call, err := actors.ChangeOwner(minerAddr, ownerAddr)
			if err != nil {
				return err
			}
			return flags.run(cmd, a, call)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&miner, "miner", "", "miner actor address")
	cmd.Flags().StringVar(&newOwner, "new-owner", "", "new owner address")
	cmd.Flags().BoolVar(&really, "really-do-it", false, "actually send the message")
	_ = cmd.MarkFlagRequired("miner")
	_ = cmd.MarkFlagRequired("new-owner")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newActorProposeChangeWorkerCmd(a *app) *cobra.Command {
	var (
		flags     sendFlags
		miner     string
		newWorker string
		controls  []string
		really    bool
	)
	cmd := &cobra.Command{
		Use:   "propose-change-worker",
		Short: "Propose a new worker address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !requireReallyDoIt(cmd, really) {
				return nil
			}
			minerAddr, err := a.parseAddress(miner)
			if err != nil {
				return err
			}
			workerAddr, err := a.parseAddress(newWorker)
			if err != nil {
				return err
			}
			controlAddrs, err := a.parseAddresses(controls)
			if err != nil {
				return err
			}
			call, err := actors.ProposeChangeWorker(minerAddr, workerAddr, controlAddrs)
			if err != nil {
				return err
			}
			return flags.run(cmd, a, call)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&miner, "miner", "", "miner actor address")
	cmd.Flags().StringVar(&newWorker, "new-worker", "", "new worker address")
	cmd.Flags().StringSliceVar(&controls, "control", nil, "control addresses to set with the new worker")
	cmd.Flags().BoolVar(&really, "really-do-it", false, "actually send the message")
	_ = cmd.MarkFlagRequired("miner")
	_ = cmd.MarkFlagRequired("new-worker")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newActorConfirmChangeWorkerCmd(a *app) *cobra.Command {
	var (
		flags  sendFlags
		miner  string
		really bool
	)
	cmd := &cobra.Command{
		Use:   "confirm-change-worker",
		Short: "Confirm a proposed worker change after its effective epoch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !requireReallyDoIt(cmd, really) {
				return nil
			}
			minerAddr, err := a.parseAddress(miner)
			if err != nil {
				return err
			}
			return flags.run(cmd, a, actors.ConfirmChangeWorker(minerAddr))
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&miner, "miner", "", "miner actor address")
	cmd.Flags().BoolVar(&really, "really-do-it", false, "actually send the message")
	_ = cmd.MarkFlagRequired("miner")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
