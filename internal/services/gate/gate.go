// Package gate holds the authorization checks shared by the lobby and ledger
// controllers. Every check is a pure function over a snapshot.
package gate

import "github.com/mcoot/tablebank/internal/model"

// RequireMember checks that the caller belongs to the lobby
func RequireMember(lobby *model.Lobby, caller model.PlayerID) error {
	if lobby == nil || !lobby.HasPlayer(caller) {
		return model.ErrNotInSession
	}
	return nil
}

// RequireHost checks that the caller is the lobby host
func RequireHost(lobby *model.Lobby, caller model.PlayerID) error {
	if lobby == nil || !lobby.IsHost(caller) {
		return model.ErrNotHost
	}
	return nil
}

// RequireTurn checks that the caller currently holds the turn
func RequireTurn(session *model.GameSession, caller model.PlayerID) error {
	if session == nil || caller == "" || session.CurrentTurn != caller {
		return model.ErrNotPlayerTurn
	}
	return nil
}

// RequireTurnHolder checks that the caller holds the turn and acts on their own behalf
func RequireTurnHolder(session *model.GameSession, caller, actor model.PlayerID) error {
	if err := RequireTurn(session, caller); err != nil {
		return err
	}
	if actor != caller {
		return model.ErrNotPlayerTurn
	}
	return nil
}
