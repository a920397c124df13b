// Package main is the native-messaging host. The browser extension starts
// it and exchanges length-prefixed JSON frames on stdin and stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/x1wallet/walletcore/internal/backup"
	"github.com/x1wallet/walletcore/internal/bridge"
	"github.com/x1wallet/walletcore/internal/cache"
	"github.com/x1wallet/walletcore/internal/chain"
	"github.com/x1wallet/walletcore/internal/config"
	"github.com/x1wallet/walletcore/internal/host"
	"github.com/x1wallet/walletcore/internal/storage"
	"github.com/x1wallet/walletcore/internal/txn"
	"github.com/x1wallet/walletcore/internal/vault"
	"github.com/x1wallet/walletcore/internal/version"
	"github.com/x1wallet/walletcore/internal/walletcrypto"
)

var (
	_ txn.Signer    = (*vault.Vault)(nil)
	_ bridge.Wallet = (*vault.Vault)(nil)
)

func main() {
	if err := run(); err != nil {
		// stdout carries frames only.
		fmt.Fprintln(os.Stderr, "x1wallet-host:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Resolve("")
	if err != nil {
		return err
	}
	logCloser, err := config.Configure(log.StandardLogger(), cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()
	logger := log.WithFields(log.Fields{"prefix": "main"})

	walletcrypto.SetIterations(cfg.Security.PBKDF2Iterations)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DataDir())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.WithError(cerr).Warn("closing storage")
		}
	}()

	if err := seedAutoLock(ctx, store, cfg.Security.AutoLockMinutes); err != nil {
		return err
	}
	v, err := vault.New(ctx, store)
	if err != nil {
		return err
	}
	defer v.Close()

	custom, err := store.CustomRPCs(ctx)
	if err != nil {
		logger.WithError(err).Warn("ignoring unreadable custom RPCs")
		custom = nil
	}
	network := cfg.ActiveNetwork(custom)
	limiter := chain.DefaultRateLimiter()
	if network.RateLimit > 0 {
		limiter.SetEndpointRate(network.RPC, network.RateLimit)
	}
	node := chain.NewClient(network.RPC, chain.WithPolicy(cfg.RetryPolicy()), chain.WithRateLimiter(limiter))

	logger.WithFields(log.Fields{
		"version": version.Current().Version,
		"network": cfg.Network,
		"rpc":     network.RPC,
		"state":   v.State().String(),
	}).Info("host starting")

	sender := txn.NewSender(node, v)
	h := host.New(os.Stdout, host.Deps{
		Vault:     v,
		Store:     store,
		Submitter: sender,
		Sender:    sender,
		Node:      node,
		Cache:     cache.New(store),
		Backups:   backup.NewService(cfg.BackupDir()),
		Network:   cfg.Network,
	}, bridge.WithApprovalTimeout(cfg.Bridge.ApprovalTimeout))
	return h.Run(ctx, os.Stdin)
}

// seedAutoLock stores the configured idle duration when the user has never
// chosen one. A stored choice always wins.
func seedAutoLock(ctx context.Context, store *storage.Store, minutes int) error {
	var existing int
	found, err := store.GetJSON(ctx, storage.Key(storage.KeyAutoLock), &existing)
	if err != nil || found {
		return err
	}
	return store.SetAutoLockMinutes(ctx, minutes)
}
