package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lotus-sign/filsign/pkg/message"
	"github.com/lotus-sign/filsign/pkg/wallet"
)

func newMpoolPushCmd(a *app) *cobra.Command {
	var (
		wait      bool
		cidString string
	)
	cmd := &cobra.Command{
		Use:   "mpool-push [signed-message-json|-]",
		Short: "Push a message signed offline to the node",
		Long: "Push a signed message given as JSON, or with --cid a message from the local journal.\n" +
			"The signature is verified before anything is sent.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.database()
			if err != nil {
				return err
			}
			journal := NewMessageJournal(db)

			sm, err := a.signedMessageToPush(ctx, journal, cidString, args)
			if err != nil {
				return err
			}
			if err := sm.Message.Validate(); err != nil {
				return err
			}
			if err := wallet.VerifyMessage(sm); err != nil {
				return err
			}

			client, err := a.node(ctx)
			if err != nil {
				return err
			}

			// Pushing never signs, so the executor gets no wallet.
			exec := NewExecutor(client, nil, journal, a.metrics, a.cfg.Confidence)
			if err := journal.Record(ctx, sm); err != nil {
				a.lg.Warn("failed to journal message", "error", err)
			}
			res, err := exec.Push(ctx, sm, wait)
			if res != nil {
				printResult(cmd, res)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the message to be executed")
	cmd.Flags().StringVar(&cidString, "cid", "", "push a message recorded in the journal")
	return cmd
}

func (a *app) signedMessageToPush(ctx context.Context, journal *MessageJournal, cidString string, args []string) (*message.SignedMessage, error) {
	if cidString != "" {
		rec, err := journal.Get(ctx, cidString)
		if err != nil {
			return nil, err
		}
		return rec.SignedMessage()
	}

	raw, err := a.readArgOrStdin(args)
	if err != nil {
		return nil, err
	}
	var sm message.SignedMessage
	if err := json.Unmarshal([]byte(raw), &sm); err != nil {
		return nil, fmt.Errorf("failed to decode signed message: %w", err)
	}
	return &sm, nil
}
