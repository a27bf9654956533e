package restart

import (
	"testing"
	"time"
)

func TestCanProposeAllowsFirstProposal(t *testing.T) {
	m := New()
	ok, _, _ := m.CanPropose("ROOM1", "u1")
	if !ok {
		t.Fatalf("expected first proposal to be allowed")
	}
}

func TestCanProposeRejectsWhileVoteActive(t *testing.T) {
	m := New()
	m.Propose("ROOM1", "u1")

	ok, _, _ := m.CanPropose("ROOM1", "u2")
	if ok {
		t.Fatalf("expected proposal to be rejected while a vote is active")
	}
}

func TestCanProposeRejectsDuringCooldown(t *testing.T) {
	m := New()
	m.Propose("ROOM1", "u1")
	m.CastVote("ROOM1", "u1", false, 2) // cancels via no-vote, starts cooldown

	ok, _, retryAt := m.CanPropose("ROOM1", "u1")
	if ok {
		t.Fatalf("expected proposal to be rejected during cooldown")
	}
	if !retryAt.After(time.Now()) {
		t.Fatalf("expected retryAt to be in the future, got %v", retryAt)
	}
}

func TestProposeImplicitlyVotesYes(t *testing.T) {
	m := New()
	v := m.Propose("ROOM1", "u1")

	if !v.Yes["u1"] {
		t.Fatalf("expected proposer to be implicitly counted as a yes vote")
	}
}

func TestCastVoteUnanimousAcceptance(t *testing.T) {
	m := New()
	m.Propose("ROOM1", "u1")

	result, ok := m.CastVote("ROOM1", "u2", true, 2)
	if !ok {
		t.Fatalf("expected CastVote to find the active vote")
	}
	if !result.Accepted {
		t.Fatalf("expected the vote to be accepted once every player votes yes")
	}

	if _, active := m.ActiveVote("ROOM1"); active {
		t.Fatalf("expected the vote to be cleared after acceptance")
	}
}

func TestCastVotePartialYesStaysPending(t *testing.T) {
	m := New()
	m.Propose("ROOM1", "u1")

	result, ok := m.CastVote("ROOM1", "u2", true, 3)
	if !ok {
		t.Fatalf("expected CastVote to find the active vote")
	}
	if result.Accepted || result.Cancelled {
		t.Fatalf("expected vote to remain pending with 2/3 yes votes, got %+v", result)
	}
	if result.YesCount != 2 {
		t.Fatalf("expected YesCount 2, got %d", result.YesCount)
	}
}

func TestCastVoteNoCancelsImmediately(t *testing.T) {
	m := New()
	m.Propose("ROOM1", "u1")

	result, ok := m.CastVote("ROOM1", "u2", false, 3)
	if !ok {
		t.Fatalf("expected CastVote to find the active vote")
	}
	if !result.Cancelled || result.Reason != CancelNoVote {
		t.Fatalf("expected a no-vote cancellation, got %+v", result)
	}
	if result.ProposerID != "u1" {
		t.Fatalf("expected ProposerID to identify who proposed, got %q", result.ProposerID)
	}
	if _, active := m.ActiveVote("ROOM1"); active {
		t.Fatalf("expected the vote to be cleared after a no vote")
	}
}

func TestCastVoteUnknownRoomReturnsFalse(t *testing.T) {
	m := New()
	_, ok := m.CastVote("GHOST", "u1", true, 2)
	if ok {
		t.Fatalf("expected CastVote on an unknown room to report not-found")
	}
}

func TestCheckTimeoutCancelsExpiredVote(t *testing.T) {
	m := New()
	m.Propose("ROOM1", "u1")
	m.votes["ROOM1"].ExpiresAt = time.Now().Add(-time.Second)

	result, ok := m.CheckTimeout("ROOM1")
	if !ok {
		t.Fatalf("expected CheckTimeout to report the vote as handled")
	}
	if !result.Cancelled || result.Reason != CancelTimeout {
		t.Fatalf("expected a timeout cancellation, got %+v", result)
	}
	if result.ProposerID != "u1" {
		t.Fatalf("expected ProposerID to identify who proposed, got %q", result.ProposerID)
	}
}

func TestCheckTimeoutLeavesFreshVoteAlone(t *testing.T) {
	m := New()
	m.Propose("ROOM1", "u1")

	_, ok := m.CheckTimeout("ROOM1")
	if ok {
		t.Fatalf("expected a fresh vote to not be timed out yet")
	}
}

func TestShouldKickAfterThreeIgnoredTimeouts(t *testing.T) {
	m := New()
	for i := 0; i < maxIgnoredCount; i++ {
		m.Propose("ROOM1", "u1")
		m.votes["ROOM1"].ExpiresAt = time.Now().Add(-time.Second)
		if _, ok := m.CheckTimeout("ROOM1"); !ok {
			t.Fatalf("expected CheckTimeout to fire on iteration %d", i)
		}
	}

	if !m.ShouldKick("ROOM1", "u1") {
		t.Fatalf("expected ShouldKick to report true after %d ignored timeouts", maxIgnoredCount)
	}
}

func TestShouldKickFalseBeforeThreshold(t *testing.T) {
	m := New()
	m.Propose("ROOM1", "u1")
	m.votes["ROOM1"].ExpiresAt = time.Now().Add(-time.Second)
	m.CheckTimeout("ROOM1")

	if m.ShouldKick("ROOM1", "u1") {
		t.Fatalf("expected ShouldKick to report false after only one ignored timeout")
	}
}

func TestClearRoomRemovesVoteAndProposerState(t *testing.T) {
	m := New()
	m.Propose("ROOM1", "u1")
	m.votes["ROOM1"].ExpiresAt = time.Now().Add(-time.Second)
	m.CheckTimeout("ROOM1")

	m.ClearRoom("ROOM1")

	if _, active := m.ActiveVote("ROOM1"); active {
		t.Fatalf("expected no active vote after ClearRoom")
	}
	if m.ShouldKick("ROOM1", "u1") {
		t.Fatalf("expected proposer penalty state to be cleared by ClearRoom")
	}
}
