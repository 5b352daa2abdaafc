package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lotus-sign/filsign/pkg/actors"
	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/fil"
	"github.com/lotus-sign/filsign/pkg/message"
)

// sendFlags are the message options shared by every command that sends.
type sendFlags struct {
	from       string
	nonce      int64
	gasLimit   int64
	gasFeeCap  string
	gasPremium string
	offline    bool
	wait       bool
}

func (f *sendFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.from, "from", "", "address to send from (required)")
	fs.Int64Var(&f.nonce, "nonce", -1, "nonce to use instead of asking the node")
	fs.Int64Var(&f.gasLimit, "gas-limit", 0, "gas limit; 0 estimates gas")
	fs.StringVar(&f.gasFeeCap, "gas-feecap", "0", "gas fee cap in attoFIL")
	fs.StringVar(&f.gasPremium, "gas-premium", "0", "gas premium in attoFIL")
	fs.BoolVar(&f.offline, "offline", false, "sign without the node and print the signed message")
	fs.BoolVar(&f.wait, "wait", false, "wait for the message to be executed")
}

func (f *sendFlags) options() (SendOptions, error) {
	feeCap, err := fil.Parse(f.gasFeeCap, fil.UnitAttoFIL)
	if err != nil {
		return SendOptions{}, fmt.Errorf("gas-feecap: %w", err)
	}
	premium, err := fil.Parse(f.gasPremium, fil.UnitAttoFIL)
	if err != nil {
		return SendOptions{}, fmt.Errorf("gas-premium: %w", err)
	}

	opts := SendOptions{
		GasLimit:   f.gasLimit,
		GasFeeCap:  feeCap,
		GasPremium: premium,
		Offline:    f.offline,
		Wait:       f.wait && !f.offline,
	}
	if f.nonce >= 0 {
		nonce := uint64(f.nonce)
		opts.Nonce = &nonce
	}
	return opts, nil
}

func (f *sendFlags) fromAddress(a *app) (address.Address, error) {
	if f.from == "" {
		return address.Undef, fmt.Errorf("--from is required")
	}
	return a.parseAddress(f.from)
}

// run executes call from the --from address and prints the outcome.
func (f *sendFlags) run(cmd *cobra.Command, a *app, call actors.Call) error {
	from, err := f.fromAddress(a)
	if err != nil {
		return err
	}
	opts, err := f.options()
	if err != nil {
		return err
	}
	exec, err := a.executor(cmd.Context(), opts.Offline)
	if err != nil {
		return err
	}

	res, err := exec.Execute(cmd.Context(), from, call, opts)
	if res != nil {
		printResult(cmd, res)
	}
	return err
}

func printResult(cmd *cobra.Command, res *Result) {
	out := cmd.OutOrStdout()
	if !res.Pushed {
		data, err := json.MarshalIndent(res.Signed, "", "  ")
		if err == nil {
			fmt.Fprintln(out, string(data))
		}
		fmt.Fprintf(out, "Signed message CID: %s\n", res.Cid)
		return
	}
	fmt.Fprintf(out, "Message CID: %s\n", res.Cid)
	if res.Lookup != nil {
		fmt.Fprintf(out, "Executed at height %d, exit code %d, gas used %d\n",
			res.Lookup.Height, res.Lookup.Receipt.ExitCode, res.Lookup.Receipt.GasUsed)
	}
}

func newSendCmd(a *app) *cobra.Command {
	var (
		flags     sendFlags
		method    uint64
		paramsHex string
	)
	cmd := &cobra.Command{
		Use:   "send <to> <amount>",
		Short: "Send FIL; amount accepts FIL and attoFIL units (default FIL)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := a.parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := fil.ParseFIL(args[1])
			if err != nil {
				return err
			}
			call, err := actors.Send(to, amount)
			if err != nil {
				return err
			}
			call.Method = message.MethodNum(method)
			if paramsHex != "" {
				if call.Params, err = hex.DecodeString(paramsHex); err != nil {
					return fmt.Errorf("params: %w", err)
				}
			}
			return flags.run(cmd, a, call)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().Uint64Var(&method, "method", uint64(message.MethodSend), "actor method number")
	cmd.Flags().StringVar(&paramsHex, "params-hex", "", "hex encoded method params")
	return cmd
}
