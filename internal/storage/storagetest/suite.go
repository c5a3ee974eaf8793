// Package storagetest holds behaviour every storage backend must share.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/storage"
)

// Suite runs the storage contract against the backend returned by New.
// Backends embed it and set New in their own SetupTest.
type Suite struct {
	suite.Suite
	New     func() storage.Storage
	Storage storage.Storage
	Ctx     context.Context
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.New, "storage constructor not set")
	s.Storage = s.New()
	s.Ctx = context.Background()
	s.Require().NoError(s.Storage.Reset(s.Ctx))
}

// Player builds an account with a fresh id
func Player(username string) *model.RegisteredPlayer {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &model.RegisteredPlayer{
		Player: model.Player{
			ID:        model.NewPlayerID(),
			Username:  username,
			Email:     username + "@example.com",
			Authority: model.AuthorityPlayer,
			CreatedAt: now,
		},
		PasswordHash: "hash-" + username,
		UpdatedAt:    now,
	}
}

func (s *Suite) TestCreateAndGetPlayer() {
	rp := Player("alice")
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, rp))

	got, err := s.Storage.GetPlayer(s.Ctx, rp.ID)
	s.Require().NoError(err)
	s.Equal(rp.ID, got.ID)
	s.Equal("alice", got.Username)
	s.Equal("alice@example.com", got.Email)
	s.Equal(model.AuthorityPlayer, got.Authority)
	s.Equal("hash-alice", got.PasswordHash)
	s.True(rp.CreatedAt.Equal(got.CreatedAt))
}

func (s *Suite) TestLookupByUsernameAndEmail() {
	rp := Player("bob")
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, rp))

	byName, err := s.Storage.GetPlayerByUsername(s.Ctx, "bob")
	s.Require().NoError(err)
	s.Equal(rp.ID, byName.ID)

	byEmail, err := s.Storage.GetPlayerByEmail(s.Ctx, "bob@example.com")
	s.Require().NoError(err)
	s.Equal(rp.ID, byEmail.ID)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, model.NewPlayerID())
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.Storage.GetPlayerByUsername(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.Storage.GetPlayerByEmail(s.Ctx, "nobody@example.com")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestCreatePlayerConflicts() {
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, Player("carol")))

	sameName := Player("carol")
	sameName.Email = "other@example.com"
	s.ErrorIs(s.Storage.CreatePlayer(s.Ctx, sameName), model.ErrUsernameExists)

	sameEmail := Player("dave")
	sameEmail.Email = "carol@example.com"
	s.ErrorIs(s.Storage.CreatePlayer(s.Ctx, sameEmail), model.ErrEmailExists)

	// A rejected account must not leave indexes behind
	_, err := s.Storage.GetPlayerByUsername(s.Ctx, "dave")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestListPlayersOrderedByUsername() {
	for _, name := range []string{"zoe", "amy", "mel"} {
		s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, Player(name)))
	}

	players, err := s.Storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(players, 3)
	s.Equal("amy", players[0].Username)
	s.Equal("mel", players[1].Username)
	s.Equal("zoe", players[2].Username)
}

func (s *Suite) TestReset() {
	rp := Player("erin")
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, rp))

	s.Require().NoError(s.Storage.Reset(s.Ctx))

	players, err := s.Storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.Empty(players)
	_, err = s.Storage.GetPlayerByUsername(s.Ctx, "erin")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	// Names are free again
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, Player("erin")))
}

func (s *Suite) TestPing() {
	s.NoError(s.Storage.Ping(s.Ctx))
}
