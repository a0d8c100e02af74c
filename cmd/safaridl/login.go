package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"safaridl/pkg/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store session cookies for later downloads",
	Long: "Persist the session cookies of an authenticated browser session. " +
		"Copy the cookie values from your browser after logging into Safari " +
		"Books Online, e.g. `safaridl login --cookie sessionid=... --cookie csrfsafari=...`.",
	Run: func(cmd *cobra.Command, args []string) {
		pairs, _ := cmd.Flags().GetStringArray("cookie")
		from, _ := cmd.Flags().GetString("from")
		if len(pairs) == 0 && from == "" {
			cobra.CheckErr(fmt.Errorf("no cookies given, use --cookie name=value or --from <file>"))
		}

		cookies := session.Cookies{}
		if from != "" {
			loaded, err := session.Load(from)
			cobra.CheckErr(err)
			cookies = loaded
		}
		for _, pair := range pairs {
			name, value, ok := strings.Cut(pair, "=")
			if !ok || name == "" {
				cobra.CheckErr(fmt.Errorf("invalid cookie %q, expected name=value", pair))
			}
			cookies[name] = value
		}

		cobra.CheckErr(session.Save(cookiesPath, cookies))
		fmt.Printf("Saved %d cookies to %s\n", len(cookies), cookiesPath)
	},
}

func init() {
	loginCmd.Flags().StringArray("cookie", nil, "Session cookie as name=value (repeatable)")
	loginCmd.Flags().String("from", "", "Import cookies from an existing JSON cookies file")
}
