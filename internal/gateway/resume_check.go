package gateway

import (
	"gridmatch/internal/resume"
)

// resolveResumeEligibility implements spec.md §4.6's resolveResumeEligibility:
// for a MULTIPLAYER record, consults C5 (matchmgr) and C3 (lobby) to confirm
// the room is still STARTED, the user is still a member, and a live,
// unended match with the matching id still exists. A SINGLEPLAYER record
// needs no cross-service consult. Records found ineligible by these
// consults are marked intentionally terminated via resumes.Terminate.
func (g *Gateway) resolveResumeEligibility(userID string) (eligible bool, reason string) {
	rec, ok := g.resumes.GetActiveSession(userID)
	if !ok {
		return false, "no_active_session"
	}
	if rec.IntentionallyTerminated {
		return false, "intentionally_terminated"
	}

	if rec.Mode == resume.ModeSingleplayer {
		return true, ""
	}

	dbRoom, err := g.lobby.GetRoom(rec.RoomCode)
	if err != nil || dbRoom.Phase != "STARTED" {
		g.resumes.Terminate(userID)
		return false, "room_not_active"
	}

	if !g.isRoomMember(rec.RoomCode, userID) {
		g.resumes.Terminate(userID)
		return false, "not_a_member"
	}

	m, hasMatch := g.matches.Get(rec.MatchID)
	if !hasMatch || m.Ended() {
		g.resumes.Terminate(userID)
		return false, "match_ended"
	}

	return true, ""
}

func (g *Gateway) isRoomMember(roomCode, userID string) bool {
	members, err := g.lobby.ListMembers(roomCode)
	if err != nil {
		return false
	}
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
