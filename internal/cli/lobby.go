package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newLobbyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lobby",
		Short: "Lobby commands",
	}

	cmd.AddCommand(newLobbyListCmd())
	cmd.AddCommand(newLobbyPlayersCmd())

	return cmd
}

func newLobbyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open lobbies",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result LobbyList

			if err := client.Get("/api/v1/lobbies", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newLobbyPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players <name>",
		Short: "List the players in a lobby",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result LobbyPlayers

			if err := client.Get("/api/v1/lobbies/"+url.PathEscape(args[0])+"/players", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
