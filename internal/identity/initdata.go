// Package identity implements the Session Oracle (spec component C2): it
// resolves a bearer token or a Telegram Mini-App initData string to a
// tgUserId, and owns the HMAC verification chain described in spec.md §6.2.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"gridmatch/internal/apperr"
)

const maxInitDataAge = 24 * time.Hour

// VerifiedIdentity is the outcome of a successful initData verification.
type VerifiedIdentity struct {
	UserID      string
	Username    string
	DisplayName string
}

type tgUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// VerifyInitData implements the chain from spec.md §6.2: parse key=value
// pairs, require hash+auth_date, rebuild the sorted data-check-string,
// HMAC-SHA256 it with SHA-256(botToken) as key, constant-time compare, check
// freshness, then decode the embedded user JSON.
func VerifyInitData(initData, botToken string) (*VerifiedIdentity, error) {
	if strings.TrimSpace(initData) == "" {
		return nil, apperr.New(apperr.CodeInitDataEmpty)
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, apperr.New(apperr.CodeInitDataEmpty)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, apperr.New(apperr.CodeHashMissing)
	}

	authDateStr := values.Get("auth_date")
	if authDateStr == "" {
		return nil, apperr.New(apperr.CodeAuthDateMissing)
	}
	authDate, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return nil, apperr.New(apperr.CodeAuthDateInvalid)
	}

	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretKey := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secretKey[:])
	mac.Write([]byte(dataCheckString))
	computed := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(hash))) != 1 {
		return nil, apperr.New(apperr.CodeSignatureInvalid)
	}

	if time.Now().UTC().Unix()-authDate > int64(maxInitDataAge.Seconds()) {
		return nil, apperr.New(apperr.CodeAuthDateExpired)
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, apperr.New(apperr.CodeUserMissing)
	}

	var u tgUser
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil || u.ID == 0 {
		return nil, apperr.New(apperr.CodeUserInvalid)
	}

	displayName := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if displayName == "" {
		displayName = u.Username
	}
	if displayName == "" {
		displayName = strconv.FormatInt(u.ID, 10)
	}

	return &VerifiedIdentity{
		UserID:      strconv.FormatInt(u.ID, 10),
		Username:    u.Username,
		DisplayName: displayName,
	}, nil
}
