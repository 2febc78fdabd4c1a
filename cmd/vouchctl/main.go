package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vouchlab/vouchd/pkg/client"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	authToken string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vouchctl",
	Short: "vouchd command-line client",
	Long: `vouchctl is the command-line interface for a vouchd server.

It records and removes vouches, shows reputation views, and administers
community settings and blacklists.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.vouchctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.vouchctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "vouchd server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "actor bearer token")

	rootCmd.AddCommand(vouchCmd)
	rootCmd.AddCommand(unvouchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(blacklistCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if authToken != "" {
		opts = append(opts, client.WithBearerToken(authToken))
	}
	return client.New(serverURL, opts...)
}

// ── vouch ────────────────────────────────────────────────────────────────────

var vouchCmd = &cobra.Command{
	Use:   "vouch <community-id> <target-user-id> <reason>",
	Short: "Record a vouch for a user",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		v, err := c.CreateVouch(context.Background(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Vouch #%d recorded for %s\n", v.ID, v.TargetDisplayName)
		return nil
	},
}

var unvouchCmd = &cobra.Command{
	Use:   "unvouch <vouch-id>",
	Short: "Remove one of your vouches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid vouch id %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.DeleteVouch(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("✓ Vouch #%d removed\n", id)
		return nil
	},
}

// ── list ─────────────────────────────────────────────────────────────────────

var listPage int

var listCmd = &cobra.Command{
	Use:   "list <community-id> <user-id>",
	Short: "List the vouches a user has received",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.ListVouches(context.Background(), args[0], args[1], listPage)
		if err != nil {
			return err
		}

		if p.Total == 0 {
			fmt.Println("No vouches found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFROM\tREASON\tDATE")
		for _, v := range p.Entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
				v.ID, v.VoucherDisplayName, v.Reason, v.CreatedAt.Format("2006-01-02"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\nPage %d of %d (%d total)\n", p.Page+1, p.TotalPages, p.Total)
		return nil
	},
}

func init() {
	listCmd.Flags().IntVar(&listPage, "page", 0, "Page index (0-based)")
}

// ── stats / profile / leaderboard ────────────────────────────────────────────

var statsCmd = &cobra.Command{
	Use:   "stats <community-id> <user-id>",
	Short: "Show a user's vouch counts, score, and badge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.Stats(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("User:     %s\n", s.UserID)
		fmt.Printf("Received: %d\n", s.Received)
		fmt.Printf("Given:    %d\n", s.Given)
		fmt.Printf("Score:    %.2f\n", s.Score)
		if s.Badge != "" {
			fmt.Printf("Badge:    %s\n", s.Badge)
		}
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile <community-id> <user-id>",
	Short: "Show a user's full profile as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.Profile(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var leaderboardBy string

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard <community-id>",
	Short: "Show the community's top vouched users",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		entries, err := c.Leaderboard(context.Background(), args[0], leaderboardBy)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No vouches recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tUSER\tCOUNT")
		for i, e := range entries {
			name := e.DisplayName
			if name == "" {
				name = e.UserID
			}
			fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, name, e.Count)
		}
		return w.Flush()
	},
}

func init() {
	leaderboardCmd.Flags().StringVar(&leaderboardBy, "by", "received", "Ranking side: received or given")
}

// ── purge ────────────────────────────────────────────────────────────────────

var purgeForce bool

var purgeCmd = &cobra.Command{
	Use:   "purge <community-id> <target-user-id>",
	Short: "Remove every vouch a user has received (admin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !purgeForce {
			fmt.Printf("This removes every vouch %s has received in %s. Confirm? [y/N]: ", args[1], args[0])
			var answer string
			fmt.Scanln(&answer) //nolint:errcheck
			if answer != "y" && answer != "Y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		n, err := c.PurgeVouches(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Purged %d vouch(es)\n", n)
		return nil
	},
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeForce, "force", false, "Skip confirmation prompt")
}

// ── settings ─────────────────────────────────────────────────────────────────

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change community settings (admin)",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show <community-id>",
	Short: "Show the community's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.GetSettings(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Admin role:   %s\n", orUnset(s.AdminRoleID))
		fmt.Printf("Trusted role: %s\n", orUnset(s.TrustedRoleID))
		fmt.Printf("Log channel:  %s\n", orUnset(s.LogChannelID))
		fmt.Printf("Decay:        %.1f day half-life\n", s.DecayHalfLifeDays)
		return nil
	},
}

var settingsAdminRoleCmd = &cobra.Command{
	Use:   "admin-role <community-id> [role-id]",
	Short: "Set the admin role; omit role-id to clear it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleID := ""
		if len(args) == 2 {
			roleID = args[1]
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.SetAdminRole(context.Background(), args[0], roleID); err != nil {
			return err
		}
		fmt.Printf("✓ Admin role: %s\n", orUnset(roleID))
		return nil
	},
}

var settingsTrustedRoleCmd = &cobra.Command{
	Use:   "trusted-role <community-id> [role-id]",
	Short: "Set the trusted role gating vouch creation; omit role-id to clear it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleID := ""
		if len(args) == 2 {
			roleID = args[1]
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.SetTrustedRole(context.Background(), args[0], roleID); err != nil {
			return err
		}
		fmt.Printf("✓ Trusted role: %s\n", orUnset(roleID))
		return nil
	},
}

var settingsLogChannelCmd = &cobra.Command{
	Use:   "log-channel <community-id> [channel-id]",
	Short: "Set the audit log channel; omit channel-id to clear it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID := ""
		if len(args) == 2 {
			channelID = args[1]
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.SetLogChannel(context.Background(), args[0], channelID); err != nil {
			return err
		}
		fmt.Printf("✓ Log channel: %s\n", orUnset(channelID))
		return nil
	},
}

var settingsDecayCmd = &cobra.Command{
	Use:   "decay <community-id> <half-life-days>",
	Short: "Set the reputation decay half-life in days",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid half-life %q", args[1])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.SetDecay(context.Background(), args[0], days); err != nil {
			return err
		}
		fmt.Printf("✓ Decay half-life: %.1f days\n", days)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsAdminRoleCmd)
	settingsCmd.AddCommand(settingsTrustedRoleCmd)
	settingsCmd.AddCommand(settingsLogChannelCmd)
	settingsCmd.AddCommand(settingsDecayCmd)
}

// ── blacklist ────────────────────────────────────────────────────────────────

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage the community blacklist (admin)",
}

var blacklistReason string

var blacklistAddCmd = &cobra.Command{
	Use:   "add <community-id> <user-id>",
	Short: "Blacklist a user from giving and receiving vouches",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		e, err := c.AddBlacklist(context.Background(), args[0], args[1], blacklistReason)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Blacklisted %s: %s\n", e.UserID, e.Reason)
		return nil
	},
}

var blacklistRemoveCmd = &cobra.Command{
	Use:   "remove <community-id> <user-id>",
	Short: "Lift a blacklist entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.RemoveBlacklist(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Removed %s from the blacklist\n", args[1])
		return nil
	},
}

var blacklistListCmd = &cobra.Command{
	Use:   "list <community-id>",
	Short: "List the community's blacklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		entries, err := c.ListBlacklist(context.Background(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Blacklist is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tREASON\tADDED BY\tDATE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.UserID, e.Reason, e.AddedBy, e.AddedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	blacklistAddCmd.Flags().StringVar(&blacklistReason, "reason", "", "Why the user is being blacklisted")
	blacklistCmd.AddCommand(blacklistAddCmd)
	blacklistCmd.AddCommand(blacklistRemoveCmd)
	blacklistCmd.AddCommand(blacklistListCmd)
}

// ── export ───────────────────────────────────────────────────────────────────

var exportCmd = &cobra.Command{
	Use:   "export <community-id> <target-user-id>",
	Short: "Deliver a user's full vouch history as CSV (admin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		n, err := c.Export(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Export delivered (%d record(s))\n", n)
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the vouchctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vouchctl %s\n", version)
	},
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
