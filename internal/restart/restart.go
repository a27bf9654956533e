// Package restart implements the Restart Vote FSM (spec component C7):
// one active unanimous-acceptance restart vote per room, with cancellation
// and anti-spam penalties (spec.md §4.5).
package restart

import (
	"sync"
	"time"
)

const (
	voteWindow      = 10 * time.Second
	proposeCooldown = 60 * time.Second
	maxIgnoredCount = 3
)

// CancelReason tags why a vote was cancelled.
type CancelReason string

const (
	CancelNoVote  CancelReason = "no_vote"
	CancelTimeout CancelReason = "timeout"
)

// Vote is one room's in-flight restart proposal (spec.md §3's RestartVote).
type Vote struct {
	RoomCode      string
	ProposerID    string
	Yes           map[string]bool
	No            map[string]bool
	ExpiresAt     time.Time
}

// proposerState tracks the anti-spam penalty counters per (room, proposer).
type proposerState struct {
	cooldownUntil time.Time
	ignoredCount  int
}

// Manager owns every room's active vote and proposer penalty state. Single
// writer per room by construction (spec.md §5): all mutation flows through
// the gateway's message handler for that room.
type Manager struct {
	mu        sync.Mutex
	votes     map[string]*Vote
	proposers map[string]*proposerState // key: roomCode + "|" + userID
}

func New() *Manager {
	return &Manager{
		votes:     make(map[string]*Vote),
		proposers: make(map[string]*proposerState),
	}
}

func proposerKey(roomCode, userID string) string { return roomCode + "|" + userID }

// CanPropose reports whether userID may propose a restart in roomCode right
// now: no vote already active, and not in cooldown.
func (m *Manager) CanPropose(roomCode, userID string) (bool, CancelReason, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, active := m.votes[roomCode]; active {
		return false, "", time.Time{}
	}
	if st, ok := m.proposers[proposerKey(roomCode, userID)]; ok {
		if time.Now().Before(st.cooldownUntil) {
			return false, "", st.cooldownUntil
		}
	}
	return true, "", time.Time{}
}

// Propose starts a new vote with the proposer implicitly voting yes
// (spec.md §4.5).
func (m *Manager) Propose(roomCode, proposerID string) *Vote {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := &Vote{
		RoomCode:   roomCode,
		ProposerID: proposerID,
		Yes:        map[string]bool{proposerID: true},
		No:         map[string]bool{},
		ExpiresAt:  time.Now().Add(voteWindow),
	}
	m.votes[roomCode] = v
	return v
}

// VoteResult is returned by CastVote and CheckTimeout, telling the gateway
// what to broadcast.
type VoteResult struct {
	Accepted   bool
	Cancelled  bool
	Reason     CancelReason
	ProposerID string
	YesCount   int
	Total      int
}

// CastVote applies a yes/no vote and evaluates acceptance/cancellation
// against totalPlayers (spec.md §4.5).
func (m *Manager) CastVote(roomCode, userID string, yes bool, totalPlayers int) (*VoteResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.votes[roomCode]
	if !ok {
		return nil, false
	}

	if !yes {
		delete(m.votes, roomCode)
		m.applyPenaltyLocked(roomCode, v.ProposerID, CancelNoVote)
		return &VoteResult{Cancelled: true, Reason: CancelNoVote, ProposerID: v.ProposerID, Total: totalPlayers}, true
	}

	v.Yes[userID] = true
	delete(v.No, userID)

	if len(v.Yes) >= totalPlayers {
		delete(m.votes, roomCode)
		delete(m.proposers, proposerKey(roomCode, v.ProposerID))
		return &VoteResult{Accepted: true, YesCount: len(v.Yes), Total: totalPlayers}, true
	}

	return &VoteResult{YesCount: len(v.Yes), Total: totalPlayers}, true
}

// CheckTimeout cancels roomCode's vote with reason timeout if its window
// has elapsed. Returns (result, hadVote).
func (m *Manager) CheckTimeout(roomCode string) (*VoteResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.votes[roomCode]
	if !ok || time.Now().Before(v.ExpiresAt) {
		return nil, false
	}

	delete(m.votes, roomCode)
	m.applyPenaltyLocked(roomCode, v.ProposerID, CancelTimeout)
	return &VoteResult{Cancelled: true, Reason: CancelTimeout, ProposerID: v.ProposerID}, true
}

// applyPenaltyLocked implements the cooldown + 3-strike kick rule
// (spec.md §4.5). It only updates the proposer's counters; ShouldKick
// reports whether the kick threshold has been reached.
func (m *Manager) applyPenaltyLocked(roomCode, proposerID string, reason CancelReason) {
	key := proposerKey(roomCode, proposerID)
	st, ok := m.proposers[key]
	if !ok {
		st = &proposerState{}
		m.proposers[key] = st
	}
	st.cooldownUntil = time.Now().Add(proposeCooldown)
	if reason == CancelTimeout {
		st.ignoredCount++
	} else {
		st.ignoredCount = 0
	}
}

// ShouldKick reports whether proposerID has reached the ignored-vote limit
// (maxIgnoredCount) in roomCode, consuming (resetting) the counter if so.
func (m *Manager) ShouldKick(roomCode, proposerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.proposers[proposerKey(roomCode, proposerID)]
	if !ok {
		return false
	}
	if st.ignoredCount >= maxIgnoredCount {
		st.ignoredCount = 0
		return true
	}
	return false
}

// ClearRoom removes any active vote and proposer state for roomCode (e.g.
// on room finalize).
func (m *Manager) ClearRoom(roomCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.votes, roomCode)
	for key := range m.proposers {
		if len(key) > len(roomCode) && key[:len(roomCode)+1] == roomCode+"|" {
			delete(m.proposers, key)
		}
	}
}

// ActiveVote returns the current vote for roomCode, if any.
func (m *Manager) ActiveVote(roomCode string) (*Vote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[roomCode]
	return v, ok
}
