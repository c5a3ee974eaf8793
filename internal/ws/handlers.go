package ws

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/protocol"
)

func (s *Server) routes() {
	s.dispatcher.HandlePublic(protocol.TypeAuth, s.handleAuth)
	s.dispatcher.Handle(protocol.TypeGameState, s.handleGameState)
	s.dispatcher.Handle(protocol.TypeCreateLobby, s.handleCreateLobby)
	s.dispatcher.Handle(protocol.TypeJoinLobby, s.handleJoinLobby)
	s.dispatcher.Handle(protocol.TypeLeaveLobby, s.handleLeaveLobby)
	s.dispatcher.Handle(protocol.TypeStartGame, s.handleStartGame)
	s.dispatcher.Handle(protocol.TypeLeaveGame, s.handleLeaveGame)
}

func (s *Server) handleAuth(ctx context.Context, c *Connection, state model.SessionState, frame protocol.Frame) error {
	f := frame.(protocol.Auth)
	if state.Valid() {
		return fmt.Errorf("%w: already authenticated", model.ErrInvalidTransition)
	}

	claims, err := s.tokens.Decode(f.JWT)
	if err != nil {
		if n := c.authFailed(); n >= s.cfg.MaxAuthFailures {
			c.log().Warn("too many failed auth attempts, closing connection", slog.Int("attempts", n))
			c.Send(protocol.EncodeError(protocol.TypeAuth, err))
			c.Close()
			return nil
		}
		return err
	}
	player, err := claims.PlayerID()
	if err != nil {
		return err
	}

	found, err := s.sessions.CheckExistingConnection(ctx, c.ID(), player)
	if err != nil {
		return err
	}
	if found {
		next, ok, err := s.sessions.GetState(ctx, c.ID())
		if err != nil {
			return err
		}
		if ok {
			state = next
		}
	} else {
		state, err = s.sessions.Transition(ctx, c.ID(), model.Login(player))
		if err != nil {
			return err
		}
	}

	c.setUsername(claims.Username)
	c.log().Info("connection authenticated", slog.String("player_id", player.String()), slog.Bool("resumed", found))
	c.sync(state)
	return nil
}

func (s *Server) handleGameState(ctx context.Context, c *Connection, state model.SessionState, frame protocol.Frame) error {
	f := frame.(protocol.GameState)
	if f.PlayerID == "" {
		f.PlayerID = state.PlayerID.String()
	}
	snapshot, err := f.Snapshot()
	if err != nil {
		return err
	}

	state, err = s.sessions.RecordGameState(ctx, c.ID(), snapshot)
	if err != nil {
		return err
	}
	if state.Kind != model.StateInLobby {
		return nil
	}

	players, err := s.lobbies.PlayersInLobby(ctx, state.LobbyName)
	if err != nil {
		return err
	}
	out, err := protocol.EncodeGameState(snapshot)
	if err != nil {
		return err
	}
	n, err := s.sessions.Deliver(ctx, players, state.PlayerID, out)
	if err != nil {
		return err
	}
	c.log().Debug("game state rebroadcast", slog.String("lobby_name", state.LobbyName), slog.Int("recipients", n))
	return nil
}

func (s *Server) handleCreateLobby(ctx context.Context, c *Connection, state model.SessionState, frame protocol.Frame) error {
	f := frame.(protocol.CreateLobby)
	if err := checkPlayer(state, f.PlayerID); err != nil {
		return err
	}
	// Fail before touching the registry if the state cannot enter a lobby
	if _, err := state.Apply(model.JoinLobby(model.LobbyID{}, f.LobbyName)); err != nil {
		return err
	}

	id, err := s.lobbies.CreateAndJoin(ctx, f.LobbyName, state.PlayerID)
	if err != nil {
		return err
	}
	return s.enterLobby(ctx, c, state, id, f.LobbyName)
}

func (s *Server) handleJoinLobby(ctx context.Context, c *Connection, state model.SessionState, frame protocol.Frame) error {
	f := frame.(protocol.JoinLobby)
	if err := checkPlayer(state, f.PlayerID); err != nil {
		return err
	}
	if _, err := state.Apply(model.JoinLobby(model.LobbyID{}, f.LobbyName)); err != nil {
		return err
	}

	id, err := s.lobbies.AddPlayer(ctx, state.PlayerID, f.LobbyName)
	if err != nil {
		return err
	}
	if err := s.enterLobby(ctx, c, state, id, f.LobbyName); err != nil {
		return err
	}
	s.announce(ctx, f.LobbyName, state.PlayerID, c.displayName()+" joined lobby "+f.LobbyName)
	return nil
}

// enterLobby moves the session into the lobby the registry already holds
// the player in, undoing the registry change if the session refuses.
func (s *Server) enterLobby(ctx context.Context, c *Connection, state model.SessionState, id model.LobbyID, name string) error {
	next, err := s.sessions.Transition(ctx, c.ID(), model.JoinLobby(id, name))
	if err != nil {
		if rmErr := s.lobbies.RemovePlayer(ctx, state.PlayerID, name); rmErr != nil {
			c.log().Error("failed to undo lobby join", slog.String("lobby_name", name), slog.String("error", rmErr.Error()))
		}
		return err
	}
	c.sync(next)
	return nil
}

func (s *Server) handleLeaveLobby(ctx context.Context, c *Connection, state model.SessionState, frame protocol.Frame) error {
	f := frame.(protocol.LeaveLobby)
	if err := checkPlayer(state, f.PlayerID); err != nil {
		return err
	}

	if err := s.lobbies.RemovePlayer(ctx, state.PlayerID, f.LobbyName); err != nil {
		return err
	}
	if state.Kind == model.StateInLobby && state.LobbyName == f.LobbyName {
		next, err := s.sessions.Transition(ctx, c.ID(), model.Exit())
		if err != nil {
			return err
		}
		c.sync(next)
	}
	s.announce(ctx, f.LobbyName, state.PlayerID, c.displayName()+" left lobby "+f.LobbyName)
	return nil
}

func (s *Server) handleStartGame(ctx context.Context, c *Connection, _ model.SessionState, _ protocol.Frame) error {
	next, err := s.sessions.Transition(ctx, c.ID(), model.StartGame(model.NewGameID()))
	if err != nil {
		return err
	}
	c.sync(next)
	return nil
}

func (s *Server) handleLeaveGame(ctx context.Context, c *Connection, state model.SessionState, _ protocol.Frame) error {
	if state.Kind != model.StateInGame {
		return fmt.Errorf("%w: not in a game", model.ErrInvalidTransition)
	}
	next, err := s.sessions.Transition(ctx, c.ID(), model.Exit())
	if err != nil {
		return err
	}
	c.sync(next)
	return nil
}

// checkPlayer rejects a frame that names a player other than the one
// authenticated on the connection
func checkPlayer(state model.SessionState, claimed string) error {
	if claimed == "" {
		return nil
	}
	id, err := model.ParsePlayerID(claimed)
	if err != nil {
		return err
	}
	if id != state.PlayerID {
		return model.ErrPlayerMismatch
	}
	return nil
}

// announce sends a plain text notice to every other player in a lobby
func (s *Server) announce(ctx context.Context, lobbyName string, from model.PlayerID, text string) {
	players, err := s.lobbies.PlayersInLobby(ctx, lobbyName)
	if err != nil {
		s.logger.Warn("failed to list lobby for notice", slog.String("lobby_name", lobbyName), slog.String("error", err.Error()))
		return
	}
	if _, err := s.sessions.Deliver(ctx, players, from, []byte(text)); err != nil {
		s.logger.Warn("failed to deliver notice", slog.String("lobby_name", lobbyName), slog.String("error", err.Error()))
	}
}
