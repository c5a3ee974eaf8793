package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newSignupCmd() *cobra.Command {
	var user, email, pass string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a new player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" || email == "" || pass == "" {
				return fmt.Errorf("--user, --email, and --pass are required")
			}

			req := map[string]string{
				"username": user,
				"email":    email,
				"password": pass,
			}
			var result Player

			if err := client.Post("/api/v1/auth/signup", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newLoginCmd() *cobra.Command {
	var user, email, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with an existing account and save the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (user == "") == (email == "") {
				return fmt.Errorf("exactly one of --user or --email is required")
			}
			if pass == "" {
				return fmt.Errorf("--pass is required")
			}

			req := map[string]string{"password": pass}
			if user != "" {
				req["username"] = user
			} else {
				req["email"] = email
			}
			var result AuthResult

			if err := client.Post("/api/v1/auth/login", req, &result); err != nil {
				return err
			}

			if err := cfg.SaveToken(result.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newWhoamiCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in player",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output)

			if verify {
				var claims Claims
				if err := client.Get("/api/v1/auth/verify", &claims); err != nil {
					return err
				}
				out.Print(claims)
				return nil
			}

			var result Player
			if err := client.Get("/api/v1/players/me", &result); err != nil {
				return err
			}
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Show the token claims instead of the account")

	return cmd
}

func newPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List registered players",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result PlayerList

			if err := client.Get("/api/v1/players", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <player-id>",
		Short: "Show a player's most recent game states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result History

			if err := client.Get("/api/v1/players/"+url.PathEscape(args[0])+"/history", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
