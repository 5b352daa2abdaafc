package main

import (
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/message"
)

func newMessageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Inspect messages",
	}
	cmd.AddCommand(newMessageCidCmd(a), newMessageListCmd(a), newMessageShowCmd(a))
	return cmd
}

// messageCid computes the CID of a JSON message, signed or not.
func messageCid(raw []byte) (cid.Cid, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return cid.Undef, fmt.Errorf("failed to decode message: %w", err)
	}

	if _, signed := fields["Signature"]; signed {
		var sm message.SignedMessage
		if err := json.Unmarshal(raw, &sm); err != nil {
			return cid.Undef, fmt.Errorf("failed to decode signed message: %w", err)
		}
		return sm.Cid()
	}

	var msg message.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return cid.Undef, fmt.Errorf("failed to decode message: %w", err)
	}
	return msg.Cid()
}

func newMessageCidCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cid [message-json|-]",
		Short: "Print the CID of a signed or unsigned message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.readArgOrStdin(args)
			if err != nil {
				return err
			}
			c, err := messageCid([]byte(raw))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func newMessageListCmd(a *app) *cobra.Command {
	var (
		from   string
		limit  uint32
		offset uint32
		oldest bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages signed by this wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sender := address.Undef
			if from != "" {
				var err error
				if sender, err = a.parseAddress(from); err != nil {
					return err
				}
			}
			db, err := a.database()
			if err != nil {
				return err
			}

			opts := &ListOptions{Offset: offset, Limit: limit}
			if oldest {
				sort := SortTypeAscending
				opts.Sort = &sort
			}
			records, err := NewMessageJournal(db).History(cmd.Context(), sender, opts)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"CID", "From", "To", "Nonce", "Method", "Value", "Pushed", "Signed at"})
			for _, rec := range records {
				value, err := fil.FromString(rec.Value)
				if err != nil {
					return err
				}
				t.AppendRow(table.Row{rec.Cid, rec.From, rec.To, rec.Nonce, rec.Method, value.Format(), rec.Pushed, rec.CreatedAt.Format("2006-01-02 15:04:05")})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "only list messages from this address")
	cmd.Flags().Uint32Var(&limit, "limit", DefaultLimit, "maximum number of messages")
	cmd.Flags().Uint32Var(&offset, "offset", 0, "number of messages to skip")
	cmd.Flags().BoolVar(&oldest, "oldest-first", false, "list the oldest messages first")
	return cmd
}

func newMessageShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <cid>",
		Short: "Print a journaled signed message as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database()
			if err != nil {
				return err
			}
			rec, err := NewMessageJournal(db).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sm, err := rec.SignedMessage()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(sm, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
