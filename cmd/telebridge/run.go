package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"telegram-bridge/internal/accounts"
	"telegram-bridge/internal/dispatcher"
	"telegram-bridge/internal/infra/concurrency"
	"telegram-bridge/internal/infra/config"
	"telegram-bridge/internal/infra/logger"
	"telegram-bridge/internal/infra/storage"
	"telegram-bridge/internal/resolver"
)

func newRunCmd() *cobra.Command {
	var (
		timeout time.Duration
		only    []int64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a dispatcher for every active account",
		Long: `Start one dispatcher per active account and log every incoming message
until interrupted. Use --timeout for a bounded run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			concurrency.StartTimeoutTimer(ctx, timeout, stop)
			return runDispatchers(ctx, config.Env(), only)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop after this duration (0 = run until interrupted)")
	cmd.Flags().Int64SliceVar(&only, "account", nil, "run only these account ids")
	return cmd
}

func runDispatchers(ctx context.Context, env config.EnvConfig, only []int64) error {
	store, err := accounts.Open(env.AccountsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	all, err := store.List()
	if err != nil {
		return err
	}
	var active []*accounts.Account
	for _, a := range all {
		if a.Status != accounts.StatusActive || a.Session == "" {
			continue
		}
		if len(only) > 0 && !slices.Contains(only, a.Key) {
			continue
		}
		active = append(active, a)
	}
	if len(active) == 0 {
		return errors.New("no active accounts")
	}

	if err := storage.EnsureDir(env.StateDB); err != nil {
		return fmt.Errorf("ensure state db dir: %w", err)
	}
	stateDB, err := bbolt.Open(env.StateDB, storage.DefaultFilePerm, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return errors.Wrap(err, "open state db")
	}
	defer stateDB.Close()

	dedup := concurrency.NewDeduplicator(time.Duration(env.DedupWindowSec) * time.Second)
	dedup.Start(ctx)
	defer dedup.Stop()

	blocks := resolver.NewBlockSet(0, env.ResolverBlockTTL)
	opener := accounts.NewOpener(env, stateDB, logger.Logger())

	g, gctx := errgroup.WithContext(ctx)
	for _, acc := range active {
		log := logger.Logger().With(zap.Int64("account_id", acc.Key))
		px, err := opener.ProxyFor(acc)
		if err != nil {
			log.Error("bad proxy, account skipped", zap.Error(err))
			continue
		}
		d, err := dispatcher.New(dispatcher.Options{
			AccountID:         acc.Key,
			Factory:           opener.Factory(acc),
			UseProxy:          px != nil,
			Dedup:             dedup,
			Blocks:            blocks,
			ResolverThreshold: env.ResolverThreshold,
			ResolverCacheSize: env.ResolverCacheSize,
			ResolverChatTTL:   env.ResolverChatTTL,
			ResolverInputTTL:  env.ResolverInputTTL,
			RestartDelay:      env.RestartDelay,
			Logger:            logger.Logger(),
		})
		if err != nil {
			log.Error("dispatcher init failed, account skipped", zap.Error(err))
			continue
		}
		g.Go(func() error {
			// Один упавший аккаунт не останавливает остальные.
			if err := d.Run(gctx); err != nil {
				log.Error("dispatcher failed", zap.Error(err))
			}
			return nil
		})
	}
	err = g.Wait()
	logger.Info("all dispatchers stopped")
	return err
}
