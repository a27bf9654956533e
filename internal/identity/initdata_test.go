package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"gridmatch/internal/apperr"
)

const testBotToken = "test-bot-token"

func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	pairs := make([]string, 0, len(fields))
	for k, v := range fields {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretKey := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secretKey[:])
	mac.Write([]byte(dataCheckString))
	hash := hex.EncodeToString(mac.Sum(nil))

	v := url.Values{}
	for k, val := range fields {
		v.Set(k, val)
	}
	v.Set("hash", hash)
	return v.Encode()
}

func validFields() map[string]string {
	return map[string]string{
		"auth_date": strconv.FormatInt(time.Now().UTC().Unix(), 10),
		"user":      `{"id":42,"first_name":"Ada","last_name":"Lovelace","username":"ada"}`,
		"query_id":  "abc123",
	}
}

func TestVerifyInitDataAcceptsValidSignature(t *testing.T) {
	raw := signInitData(t, testBotToken, validFields())

	id, err := VerifyInitData(raw, testBotToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "42" {
		t.Fatalf("expected userID 42, got %q", id.UserID)
	}
	if id.DisplayName != "Ada Lovelace" {
		t.Fatalf("expected display name %q, got %q", "Ada Lovelace", id.DisplayName)
	}
	if id.Username != "ada" {
		t.Fatalf("expected username ada, got %q", id.Username)
	}
}

func TestVerifyInitDataRejectsEmptyInput(t *testing.T) {
	_, err := VerifyInitData("", testBotToken)
	if apperr.CodeOf(err) != apperr.CodeInitDataEmpty {
		t.Fatalf("expected CodeInitDataEmpty, got %v", err)
	}
}

func TestVerifyInitDataRejectsMissingHash(t *testing.T) {
	v := url.Values{}
	v.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	v.Set("user", `{"id":1}`)

	_, err := VerifyInitData(v.Encode(), testBotToken)
	if apperr.CodeOf(err) != apperr.CodeHashMissing {
		t.Fatalf("expected CodeHashMissing, got %v", err)
	}
}

func TestVerifyInitDataRejectsMissingAuthDate(t *testing.T) {
	v := url.Values{}
	v.Set("hash", "deadbeef")
	v.Set("user", `{"id":1}`)

	_, err := VerifyInitData(v.Encode(), testBotToken)
	if apperr.CodeOf(err) != apperr.CodeAuthDateMissing {
		t.Fatalf("expected CodeAuthDateMissing, got %v", err)
	}
}

func TestVerifyInitDataRejectsTamperedField(t *testing.T) {
	raw := signInitData(t, testBotToken, validFields())

	v, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	v.Set("query_id", "tampered")

	_, err = VerifyInitData(v.Encode(), testBotToken)
	if apperr.CodeOf(err) != apperr.CodeSignatureInvalid {
		t.Fatalf("expected CodeSignatureInvalid, got %v", err)
	}
}

func TestVerifyInitDataRejectsWrongBotToken(t *testing.T) {
	raw := signInitData(t, testBotToken, validFields())

	_, err := VerifyInitData(raw, "some-other-token")
	if apperr.CodeOf(err) != apperr.CodeSignatureInvalid {
		t.Fatalf("expected CodeSignatureInvalid, got %v", err)
	}
}

func TestVerifyInitDataRejectsExpiredAuthDate(t *testing.T) {
	fields := validFields()
	fields["auth_date"] = strconv.FormatInt(time.Now().Add(-48*time.Hour).Unix(), 10)
	raw := signInitData(t, testBotToken, fields)

	_, err := VerifyInitData(raw, testBotToken)
	if apperr.CodeOf(err) != apperr.CodeAuthDateExpired {
		t.Fatalf("expected CodeAuthDateExpired, got %v", err)
	}
}

func TestVerifyInitDataRejectsMissingUser(t *testing.T) {
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
	}
	raw := signInitData(t, testBotToken, fields)

	_, err := VerifyInitData(raw, testBotToken)
	if apperr.CodeOf(err) != apperr.CodeUserMissing {
		t.Fatalf("expected CodeUserMissing, got %v", err)
	}
}

func TestVerifyInitDataRejectsMalformedUserJSON(t *testing.T) {
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      "not-json",
	}
	raw := signInitData(t, testBotToken, fields)

	_, err := VerifyInitData(raw, testBotToken)
	if apperr.CodeOf(err) != apperr.CodeUserInvalid {
		t.Fatalf("expected CodeUserInvalid, got %v", err)
	}
}

func TestVerifyInitDataFallsBackToUsernameWithoutName(t *testing.T) {
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":7,"username":"sevenuser"}`,
	}
	raw := signInitData(t, testBotToken, fields)

	id, err := VerifyInitData(raw, testBotToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.DisplayName != "sevenuser" {
		t.Fatalf("expected display name to fall back to username, got %q", id.DisplayName)
	}
}

func TestVerifyInitDataFallsBackToUserIDWithoutNameOrUsername(t *testing.T) {
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":99}`,
	}
	raw := signInitData(t, testBotToken, fields)

	id, err := VerifyInitData(raw, testBotToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.DisplayName != "99" {
		t.Fatalf("expected display name to fall back to the numeric id, got %q", id.DisplayName)
	}
}
