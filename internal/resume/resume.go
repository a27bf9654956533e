// Package resume implements the Resume Service (spec component C8): a
// bounded-grace record of each user's last active multiplayer session,
// optionally mirrored to Redis so a process restart within the grace
// window doesn't wrongly answer eligible=false.
package resume

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttl = 60 * time.Second

// Mode mirrors spec.md §3's ResumeRecord.mode.
type Mode string

const (
	ModeMultiplayer Mode = "MULTIPLAYER"
	ModeSingleplayer Mode = "SINGLEPLAYER"
)

// Record is one user's resumable session (spec.md §3).
type Record struct {
	UserID                 string    `json:"userId"`
	Mode                   Mode      `json:"mode"`
	RoomCode               string    `json:"roomCode,omitempty"`
	MatchID                string    `json:"matchId,omitempty"`
	LastActivityAt         time.Time `json:"lastActivityAt"`
	ExpiresAt              time.Time `json:"expiresAt"`
	IntentionallyTerminated bool     `json:"intentionallyTerminated"`
}

func (r *Record) expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Service is single-writer per userId by construction (spec.md §5): all
// mutation flows through the gateway's per-connection handler.
type Service struct {
	mu      sync.Mutex
	records map[string]*Record

	redis   *redis.Client
	enabled bool
}

func New(redisClient *redis.Client) *Service {
	return &Service{
		records: make(map[string]*Record),
		redis:   redisClient,
		enabled: redisClient != nil,
	}
}

func redisKey(userID string) string {
	return "resume:" + userID
}

// TouchMultiplayer upserts a MULTIPLAYER resume record for userId.
func (s *Service) TouchMultiplayer(userID, roomCode, matchID string) {
	now := time.Now()
	rec := &Record{
		UserID: userID, Mode: ModeMultiplayer, RoomCode: roomCode, MatchID: matchID,
		LastActivityAt: now, ExpiresAt: now.Add(ttl),
	}
	s.mu.Lock()
	s.records[userID] = rec
	s.mu.Unlock()
	s.mirror(rec)
}

// TouchSingleplayer upserts a SINGLEPLAYER resume record for userId.
func (s *Service) TouchSingleplayer(userID string) {
	now := time.Now()
	rec := &Record{UserID: userID, Mode: ModeSingleplayer, LastActivityAt: now, ExpiresAt: now.Add(ttl)}
	s.mu.Lock()
	s.records[userID] = rec
	s.mu.Unlock()
	s.mirror(rec)
}

// Terminate marks the record as intentionally terminated (e.g. explicit
// leave) so resume eligibility will answer false even within the window.
func (s *Service) Terminate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[userID]; ok {
		rec.IntentionallyTerminated = true
	}
}

// GetActiveSession returns the live record for userId, expiring it lazily
// and falling back to the Redis mirror on a cold in-memory miss.
func (s *Service) GetActiveSession(userID string) (*Record, bool) {
	now := time.Now()

	s.mu.Lock()
	rec, ok := s.records[userID]
	if ok && rec.expired(now) {
		delete(s.records, userID)
		ok = false
	}
	s.mu.Unlock()

	if ok {
		return rec, true
	}

	if mirrored := s.loadFromRedis(userID); mirrored != nil {
		if mirrored.expired(now) {
			return nil, false
		}
		s.mu.Lock()
		s.records[userID] = mirrored
		s.mu.Unlock()
		return mirrored, true
	}

	return nil, false
}

// ConsumeMultiplayerResume succeeds iff the live record is a non-terminated
// MULTIPLAYER entry matching (roomCode, matchID), clearing it on success
// (spec.md §4.6).
func (s *Service) ConsumeMultiplayerResume(userID, roomCode, matchID string) bool {
	rec, ok := s.GetActiveSession(userID)
	if !ok || rec.Mode != ModeMultiplayer || rec.IntentionallyTerminated {
		return false
	}
	if rec.RoomCode != roomCode || rec.MatchID != matchID {
		return false
	}

	s.mu.Lock()
	delete(s.records, userID)
	s.mu.Unlock()
	s.deleteFromRedis(userID)
	return true
}

func (s *Service) mirror(rec *Record) {
	if !s.enabled {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		log.Printf("resume: failed to marshal record for redis mirror: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.redis.Set(ctx, redisKey(rec.UserID), payload, ttl).Err(); err != nil {
		log.Printf("resume: failed to mirror record to redis: %v", err)
	}
}

func (s *Service) loadFromRedis(userID string) *Record {
	if !s.enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload, err := s.redis.Get(ctx, redisKey(userID)).Bytes()
	if err != nil {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil
	}
	return &rec
}

func (s *Service) deleteFromRedis(userID string) {
	if !s.enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.redis.Del(ctx, redisKey(userID))
}
