package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/lotus-sign/filsign/pkg/address"
	"github.com/lotus-sign/filsign/pkg/log"
	"github.com/lotus-sign/filsign/pkg/rpc"
	"github.com/lotus-sign/filsign/pkg/wallet"
)

// app holds what commands share. Everything past the config is opened on
// first use so that offline commands never dial the node.
type app struct {
	cfg     *Config
	lg      log.Logger
	metrics *Metrics

	db     *gorm.DB
	keys   *KeyStore
	client *rpc.Client

	stdin io.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{stdin: os.Stdin}

	root := &cobra.Command{
		Use:           "filsign",
		Short:         "Filecoin wallet with local signing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}

	root.AddCommand(
		newWalletCmd(a),
		newSendCmd(a),
		newActorCmd(a),
		newWithdrawCmd(a),
		newMarketWithdrawCmd(a),
		newMpoolPushCmd(a),
		newMessageCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	var logConf log.Config
	if err := cleanenv.ReadEnv(&logConf); err != nil {
		return fmt.Errorf("failed to read log config: %w", err)
	}
	a.lg = log.NewZapLogger(logConf).WithName("filsign")

	cfg, err := LoadConfig(a.lg)
	if err != nil {
		return err
	}
	if cfg.Log != logConf {
		a.lg = log.NewZapLogger(cfg.Log).WithName("filsign")
	}
	a.cfg = cfg
	a.metrics = NewMetrics()

	cmd.SetContext(log.SetContextLogger(cmd.Context(), a.lg))
	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.cfg != nil && a.cfg.MetricsPushgateway != "" {
		if err := a.metrics.Push(ctx, a.cfg.MetricsPushgateway); err != nil {
			a.lg.Warn("failed to push metrics", "error", err)
		}
	}
	return nil
}

func (a *app) database() (*gorm.DB, error) {
	if a.db == nil {
		db, err := ConnectToDB(a.cfg.Database, a.lg)
		if err != nil {
			return nil, err
		}
		a.db = db
	}
	return a.db, nil
}

// keyStore opens the key store. Reading or adding keys needs the wallet
// password; listing and deleting do not.
func (a *app) keyStore(unlock bool) (*KeyStore, error) {
	if a.keys != nil && (a.keys.sealer != nil || !unlock) {
		return a.keys, nil
	}
	db, err := a.database()
	if err != nil {
		return nil, err
	}

	var sealer *KeySealer
	if unlock {
		password, err := a.password()
		if err != nil {
			return nil, err
		}
		if sealer, err = NewKeySealer(password); err != nil {
			return nil, err
		}
	}
	a.keys = NewKeyStore(db, sealer)
	return a.keys, nil
}

func (a *app) password() (string, error) {
	if a.cfg.WalletPassword != "" {
		return a.cfg.WalletPassword, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrEmptyPassword
	}
	fmt.Fprint(os.Stderr, "Wallet password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (a *app) node(ctx context.Context) (*rpc.Client, error) {
	if a.client == nil {
		a.checkToken()
		client, err := rpc.Dial(ctx, a.cfg.Lotus, rpc.WithCallObserver(a.metrics.ObserveRPC))
		if err != nil {
			return nil, err
		}
		a.client = client
	}
	return a.client, nil
}

// checkToken warns early when the API token cannot push messages; the node
// would otherwise reject the push only after signing.
func (a *app) checkToken() {
	if a.cfg.Lotus.Token == "" {
		return
	}
	claims, err := rpc.ParseToken(a.cfg.Lotus.Token)
	if err != nil {
		a.lg.Warn("failed to decode API token", "error", err)
		return
	}
	if !claims.Can(rpc.PermWrite) {
		a.lg.Warn("API token lacks write permission, pushing messages will fail", "allow", claims.Allow)
	}
}

// executor builds an executor; offline executors never dial the node.
func (a *app) executor(ctx context.Context, offline bool) (*Executor, error) {
	keys, err := a.keyStore(true)
	if err != nil {
		return nil, err
	}

	var api NodeAPI
	if !offline {
		client, err := a.node(ctx)
		if err != nil {
			return nil, err
		}
		api = client
	}
	return NewExecutor(api, wallet.New(keys), NewMessageJournal(a.db), a.metrics, a.cfg.Confidence), nil
}

// parseAddress parses a user-typed address, verifying its checksum unless
// lenient addresses are enabled.
func (a *app) parseAddress(s string) (address.Address, error) {
	s = strings.TrimSpace(s)
	if a.cfg.LenientAddresses {
		return address.NewFromString(s)
	}
	return address.NewFromStringStrict(s)
}

func (a *app) parseAddresses(list []string) ([]address.Address, error) {
	out := make([]address.Address, 0, len(list))
	for _, s := range list {
		addr, err := a.parseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// readArgOrStdin returns args[0], or stdin when there is no argument or it
// is "-".
func (a *app) readArgOrStdin(args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func requireReallyDoIt(cmd *cobra.Command, really bool) bool {
	if !really {
		fmt.Fprintln(cmd.OutOrStdout(), "Pass --really-do-it to actually execute this action")
	}
	return really
}
