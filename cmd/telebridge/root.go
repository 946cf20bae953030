package main

import (
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telegram-bridge/internal/infra/config"
	"telegram-bridge/internal/infra/logger"
)

var (
	bootOnce sync.Once
	bootErr  error
)

// bootstrap загружает .env и настраивает логгер один раз на процесс.
func bootstrap(envPath string) error {
	bootOnce.Do(func() {
		if err := config.Load(envPath); err != nil {
			bootErr = err
			return
		}
		env := config.Env()
		logger.Init(env.LogLevel)
		if env.LogFile != "" {
			logger.SetFile(logger.FileOptions{
				Path:       env.LogFile,
				Level:      env.LogFileLevel,
				MaxSizeMB:  env.LogFileMaxSize,
				MaxBackups: env.LogFileMaxBackups,
				MaxAgeDays: env.LogFileMaxAge,
				Compress:   env.LogFileCompress,
			})
		}
		for _, msg := range config.Warnings() {
			logger.Warn(msg)
		}
		logger.Debug("config loaded", zap.String("env", envPath), zap.String("backend", env.Backend))
	})
	return bootErr
}

func newRootCmd() *cobra.Command {
	var envPath string
	root := &cobra.Command{
		Use:   "telebridge",
		Short: "Telegram bridge over gotd and gogram",
		Long: `telebridge runs Telegram accounts on either of two MTProto backends
(gotd or gogram) behind one client interface, converts session strings between
the Pyrogram and Telethon formats and manages the account database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return bootstrap(envPath)
		},
	}
	root.PersistentFlags().StringVar(&envPath, "env", ".env", "path to .env file")

	root.AddCommand(newSessionCmd())
	root.AddCommand(newAccountCmd())
	root.AddCommand(newRunCmd())
	return root
}
