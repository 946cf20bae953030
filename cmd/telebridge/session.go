package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"telegram-bridge/internal/infra/pr"
	"telegram-bridge/internal/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session string tools",
		Long:  "Convert and inspect Pyrogram and Telethon session strings.",
	}
	cmd.AddCommand(newSessionConvertCmd(), newSessionInspectCmd())
	return cmd
}

func newSessionConvertCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "convert <session>",
		Short: "Convert a session string to another format",
		Long: `Convert a session string between the Pyrogram and Telethon formats.
Telethon strings do not carry api_id, user id, bot flag or test mode.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := formatOrDetect(from, args[0])
			if err != nil {
				return err
			}
			dst, err := session.ParseFormat(to)
			if err != nil {
				return err
			}
			out, err := session.Convert(args[0], src, dst)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source format (pyrogram|telethon); detected when empty")
	cmd.Flags().StringVar(&to, "to", "telethon", "target format (pyrogram|telethon)")
	return cmd
}

// sessionView — то, что печатает session inspect. Ключ целиком не выводится.
type sessionView struct {
	Format    string
	DC        int
	Addr      string
	TestMode  bool
	APIID     int
	HasAPIID  bool
	UserID    int64
	IsBot     bool
	AuthKeyID string
}

func newSessionInspectCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect <session>",
		Short: "Decode a session string and print its fields",
		Long:  "Decode a session string and pretty-print the data center, ids and auth key id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := formatOrDetect(format, args[0])
			if err != nil {
				return err
			}
			rec, err := session.Decode(args[0], f)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), pr.Pf(sessionView{
				Format:    f.String(),
				DC:        rec.DCID,
				Addr:      rec.Addr(),
				TestMode:  rec.TestMode,
				APIID:     rec.APIID,
				HasAPIID:  rec.HasAPIID,
				UserID:    rec.UserID,
				IsBot:     rec.IsBot,
				AuthKeyID: hex.EncodeToString(rec.AuthKeyID()),
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "session format (pyrogram|telethon); detected when empty")
	return cmd
}

// formatOrDetect разбирает имя формата или угадывает его по строке.
// Строка Telethon начинается с версии '1' и декодируется, остальное — Pyrogram.
func formatOrDetect(name, blob string) (session.Format, error) {
	if name != "" {
		return session.ParseFormat(name)
	}
	blob = strings.TrimSpace(blob)
	if strings.HasPrefix(blob, "1") {
		if _, err := session.DecodeTelethon(blob); err == nil {
			return session.FormatTelethon, nil
		}
	}
	return session.FormatPyrogram, nil
}
