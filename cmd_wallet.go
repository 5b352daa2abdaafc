package main

import (
	"encoding/hex"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lotus-sign/filsign/pkg/sign"
	"github.com/lotus-sign/filsign/pkg/wallet"
)

func newWalletCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage local keys",
	}
	cmd.AddCommand(
		newWalletNewCmd(a),
		newWalletListCmd(a),
		newWalletBalanceCmd(a),
		newWalletExportCmd(a),
		newWalletImportCmd(a),
		newWalletDeleteCmd(a),
		newWalletSignCmd(a),
	)
	return cmd
}

func newWalletNewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "new [secp256k1|bls]",
		Short:     "Generate a key and store it",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(sign.KeyTypeSecp256k1), string(sign.KeyTypeBLS)},
		RunE: func(cmd *cobra.Command, args []string) error {
			keyType := sign.KeyTypeSecp256k1
			if len(args) == 1 {
				var err error
				if keyType, err = sign.ParseKeyType(args[0]); err != nil {
					return err
				}
			}

			keys, err := a.keyStore(true)
			if err != nil {
				return err
			}
			ki, err := wallet.NewKey(keyType)
			if err != nil {
				return err
			}
			addr, err := keys.Insert(cmd.Context(), ki)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}
}

func newWalletListCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored keys with their balance and nonce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			keys, err := a.keyStore(false)
			if err != nil {
				return err
			}
			rows, err := keys.List(ctx)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			if offline {
				t.AppendHeader(table.Row{"Address", "Type", "Created"})
			} else {
				t.AppendHeader(table.Row{"Address", "ID", "Type", "Balance", "Nonce"})
			}

			for _, row := range rows {
				if offline {
					t.AppendRow(table.Row{row.Address, row.KeyType, row.CreatedAt.Format("2006-01-02 15:04")})
					continue
				}

				id, balance, nonce := "-", "-", "-"
				client, err := a.node(ctx)
				if err == nil {
					// Keys that never received funds have no actor yet.
					if addr, err := client.StateLookupID(ctx, row.Address); err == nil {
						id = addr.String()
					}
					if b, err := client.WalletBalance(ctx, row.Address); err == nil {
						balance = b.Format()
					} else {
						a.lg.Warn("failed to get balance", "address", row.Address, "error", err)
					}
					if n, err := client.MpoolGetNonce(ctx, row.Address); err == nil {
						nonce = fmt.Sprint(n)
					}
				}
				t.AppendRow(table.Row{row.Address, id, row.KeyType, balance, nonce})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "do not query the node")
	return cmd
}

func newWalletBalanceCmd(a *app) *cobra.Command {
	var atto bool
	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.parseAddress(args[0])
			if err != nil {
				return err
			}
			client, err := a.node(cmd.Context())
			if err != nil {
				return err
			}
			balance, err := client.WalletBalance(cmd.Context(), addr)
			if err != nil {
				return err
			}
			if atto {
				fmt.Fprintf(cmd.OutOrStdout(), "%s attoFIL\n", balance)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), balance.Format())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&atto, "atto", false, "print the balance in attoFIL")
	return cmd
}

func newWalletExportCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "export <address>",
		Short: "Print a private key in the lotus wallet export format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.parseAddress(args[0])
			if err != nil {
				return err
			}
			keys, err := a.keyStore(true)
			if err != nil {
				return err
			}
			ki, err := keys.GetKey(cmd.Context(), addr)
			if err != nil {
				return err
			}

			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(ki.PrivateKey))
				return nil
			}
			exported, err := ki.Export()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), exported)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the bare private key as hex")
	return cmd
}

func newWalletImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [key|-]",
		Short: "Import a key (lotus export hex, JSON key info or raw secp256k1 hex)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := a.readArgOrStdin(args)
			if err != nil {
				return err
			}
			ki, err := wallet.ParseKeyInfo(input)
			if err != nil {
				return err
			}
			keys, err := a.keyStore(true)
			if err != nil {
				return err
			}
			addr, err := keys.Insert(cmd.Context(), ki)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported key %s\n", addr)
			return nil
		},
	}
}

func newWalletDeleteCmd(a *app) *cobra.Command {
	var really bool
	cmd := &cobra.Command{
		Use:   "delete <address>",
		Short: "Remove a key from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.parseAddress(args[0])
			if err != nil {
				return err
			}
			if !requireReallyDoIt(cmd, really) {
				return nil
			}
			keys, err := a.keyStore(false)
			if err != nil {
				return err
			}
			if err := keys.Delete(cmd.Context(), addr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted key %s\n", addr)
			return nil
		},
	}
	cmd.Flags().BoolVar(&really, "really-do-it", false, "confirm the deletion")
	return cmd
}

func newWalletSignCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <address> <hex-data>",
		Short: "Sign raw bytes; prints the signature type byte followed by the signature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.parseAddress(args[0])
			if err != nil {
				return err
			}
			data, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("data is not hex: %w", err)
			}
			keys, err := a.keyStore(true)
			if err != nil {
				return err
			}
			sig, err := wallet.New(keys).Sign(cmd.Context(), addr, data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(sig.Bytes()))
			return nil
		},
	}
}
