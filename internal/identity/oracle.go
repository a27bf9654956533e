package identity

import (
	"net/http"
	"strings"
	"time"

	"gridmatch/internal/apperr"
	"gridmatch/internal/config"
	"gridmatch/internal/store"
)

// Oracle resolves a bearer token, an initData string, or (dev-only) a raw
// tgUserId into an authenticated tgUserId backed by a users row, per
// spec.md §3's "Session Oracle" and §4.4's handshake order. Only
// Authenticate mints a session token; AuthenticateRequest creates none.
type Oracle struct {
	cfg   *config.Config
	store *store.Store
}

func NewOracle(cfg *config.Config, st *store.Store) *Oracle {
	return &Oracle{cfg: cfg, store: st}
}

// ResolveBearer resolves a previously-issued session token to a userID.
func (o *Oracle) ResolveBearer(token string) (string, error) {
	if token == "" {
		return "", apperr.New(apperr.CodeUnauthorized)
	}
	return o.store.ResolveSession(token)
}

// Authenticate creates or reuses a user for a verified initData string and
// mints a fresh session token bound to it (spec.md §4.4, §6.2).
func (o *Oracle) Authenticate(initData string) (userID, sessionToken string, err error) {
	identity, err := VerifyInitData(initData, o.cfg.TGBotToken)
	if err != nil {
		return "", "", err
	}

	user, err := o.store.GetOrCreateUser(identity.UserID, identity.DisplayName)
	if err != nil {
		return "", "", err
	}

	token, err := store.NewSessionToken()
	if err != nil {
		return "", "", apperr.Wrap(apperr.CodeInternal, err)
	}

	ttl := time.Duration(o.cfg.SessionTTLSeconds) * time.Second
	if err := o.store.CreateSession(token, user.UserID, ttl); err != nil {
		return "", "", err
	}

	return user.UserID, token, nil
}

// AuthenticateRequest implements the WS handshake auth order from spec.md
// §4.4: bearer-style session token (header/query/subprotocol), then
// initData (header/query/subprotocol), then — non-production only, and
// only when explicitly enabled — a bare tgUserId query param.
func (o *Oracle) AuthenticateRequest(r *http.Request) (string, error) {
	if token := extractSessionToken(r); token != "" {
		userID, err := o.ResolveBearer(token)
		if err == nil {
			return userID, nil
		}
		if apperr.CodeOf(err) != apperr.CodeUnauthorized {
			return "", err
		}
		// fall through to initData / dev fallback
	}

	if raw := extractInitData(r); raw != "" {
		identity, err := VerifyInitData(raw, o.cfg.TGBotToken)
		if err != nil {
			return "", err
		}
		user, err := o.store.GetOrCreateUser(identity.UserID, identity.DisplayName)
		if err != nil {
			return "", err
		}
		return user.UserID, nil
	}

	if !o.cfg.IsProduction() && o.cfg.DevAllowQueryTgUserID {
		if devID := r.URL.Query().Get("tgUserId"); devID != "" {
			user, err := o.store.GetOrCreateUser(devID, "dev_demo")
			if err != nil {
				return "", err
			}
			return user.UserID, nil
		}
	}

	return "", apperr.New(apperr.CodeWSAuthFailed)
}

func extractSessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	q := r.URL.Query()
	for _, key := range []string{"sessionToken", "token", "accessToken"} {
		if v := q.Get(key); v != "" {
			return v
		}
	}
	for _, proto := range subprotocols(r) {
		if strings.HasPrefix(proto, "session_token.") {
			if decoded, err := urlDecode(strings.TrimPrefix(proto, "session_token.")); err == nil {
				return decoded
			}
		}
	}
	return ""
}

func extractInitData(r *http.Request) string {
	if v := r.Header.Get("x-telegram-init-data"); v != "" {
		return v
	}
	if v := r.URL.Query().Get("initData"); v != "" {
		return v
	}
	for _, proto := range subprotocols(r) {
		if strings.HasPrefix(proto, "init_data.") {
			if decoded, err := urlDecode(strings.TrimPrefix(proto, "init_data.")); err == nil {
				return decoded
			}
		}
	}
	return ""
}

func subprotocols(r *http.Request) []string {
	raw := r.Header.Get("Sec-WebSocket-Protocol")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
