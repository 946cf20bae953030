package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"telegram-bridge/internal/accounts"
	"telegram-bridge/internal/infra/config"
	"telegram-bridge/internal/infra/logger"
	"telegram-bridge/internal/infra/pr"
	"telegram-bridge/internal/proxy"
	"telegram-bridge/internal/session"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage stored accounts",
		Long:  "Add, list, export, inspect proxies of and delete accounts kept in the accounts database.",
	}
	cmd.AddCommand(newAccountAddCmd(), newAccountListCmd(), newAccountExportCmd(), newAccountProxyCmd(), newAccountDeleteCmd())
	return cmd
}

// consolePrompter читает ввод через readline.
type consolePrompter struct{}

func (consolePrompter) ReadLine(prompt string) (string, error)     { return pr.ReadLine(prompt) }
func (consolePrompter) ReadPassword(prompt string) (string, error) { return pr.ReadPassword(prompt) }
func (consolePrompter) Notify(msg string)                          { pr.ErrPrintln(msg) }

func openStore() (*accounts.Store, error) {
	return accounts.Open(config.Env().AccountsDB)
}

func newAccountAddCmd() *cobra.Command {
	var in accounts.Input
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Sign in to a new account and store it",
		Long: `Sign in interactively: api id and api hash (flags, .env or prompt), phone,
then the login code and the 2FA password when Telegram asks for them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := pr.Init(); err != nil {
				return fmt.Errorf("init console: %w", err)
			}
			defer pr.InterruptReadline()
			logger.SetWriters(pr.Stdout(), pr.Stderr())

			env := config.Env()
			if in.APIID == 0 {
				in.APIID = env.APIID
			}
			if in.APIHash == "" {
				in.APIHash = env.APIHash
			}
			if err := promptAPI(&in); err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opener := accounts.NewOpener(env, nil, logger.Logger())
			acc, err := accounts.NewProvisioner(store, opener, consolePrompter{}).Add(ctx, in)
			if err != nil {
				return err
			}
			pr.Printf("account %d added: user %d, phone %s\n", acc.Key, acc.UserID, acc.Phone)
			return nil
		},
	}
	cmd.Flags().IntVar(&in.APIID, "api-id", 0, "api id (default API_ID from .env)")
	cmd.Flags().StringVar(&in.APIHash, "api-hash", "", "api hash (default API_HASH from .env)")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number; asked interactively when empty")
	cmd.Flags().StringVar(&in.Proxy, "proxy", "", "proxy URL for this account")
	cmd.Flags().StringVar(&in.Backend, "backend", "", "backend for this account (gotd|gogram)")
	return cmd
}

// promptAPI дозапрашивает api id и api hash, если их нет ни во флагах, ни в .env.
func promptAPI(in *accounts.Input) error {
	for in.APIID == 0 {
		s, err := pr.ReadLine("api_id: ")
		if err != nil {
			return err
		}
		id, err := strconv.Atoi(s)
		if err != nil || id <= 0 {
			pr.ErrPrintln("api_id must be a positive number")
			continue
		}
		in.APIID = id
	}
	for in.APIHash == "" {
		s, err := pr.ReadLine("api_hash: ")
		if err != nil {
			return err
		}
		in.APIHash = s
	}
	return nil
}

func newAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		Long:  "Print id, status, phone, user id and backend of every stored account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "no accounts")
				return nil
			}
			for _, a := range all {
				backend := a.Backend
				if backend == "" {
					backend = config.Env().Backend
				}
				fmt.Fprintf(out, "%d\t%s\t%s\tuser=%d\tapi_id=%d\t%s\n", a.Key, a.Status, a.Phone, a.UserID, a.AppID, backend)
			}
			return nil
		},
	}
}

func newAccountExportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Print the session string of an account",
		Long:  "Print the stored session string of an account, converted to the requested format.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("account id: %w", err)
			}
			f, err := session.ParseFormat(format)
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			acc, err := store.Get(id)
			if err != nil {
				return err
			}
			rec, err := accounts.Record(acc)
			if err != nil {
				return err
			}
			s, err := session.Encode(rec, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "pyrogram", "output format (pyrogram|telethon)")
	return cmd
}

func newAccountProxyCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "proxy <id>",
		Short: "Print the proxy of an account",
		Long:  "Print the proxy configured for an account as a URL or as a Telethon proxy tuple.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("account id: %w", err)
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			acc, err := store.Get(id)
			if err != nil {
				return err
			}
			if acc.Proxy == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no proxy")
				return nil
			}
			s, err := formatProxy(acc.Proxy, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "url", "output format (url|telethon)")
	return cmd
}

// formatProxy печатает прокси аккаунта в виде URL или кортежа Telethon.
func formatProxy(raw, format string) (string, error) {
	p, err := proxy.Parse(raw)
	if err != nil {
		return "", err
	}
	switch format {
	case "url":
		return p.URL(), nil
	case "telethon":
		t, err := p.Telethon()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%d, %q, %d, %t, %q, %q)", t.Type, t.Host, t.Port, t.RDNS, t.Username, t.Password), nil
	default:
		return "", fmt.Errorf("unknown proxy format %q", format)
	}
}

func newAccountDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored account",
		Long:  "Remove an account from the accounts database. The Telegram session itself stays valid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("account id: %w", err)
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %d deleted\n", id)
			return nil
		},
	}
}
