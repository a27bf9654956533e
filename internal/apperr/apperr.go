// Package apperr defines the machine-readable error-code taxonomy shared by
// the store, lobby, match, and gateway packages (spec §7). Services return a
// *Error carrying a stable Code; the gateway maps codes to wire messages
// through a single table instead of inspecting error strings.
package apperr

import "fmt"

// Code is a machine-readable error identifier, stable across releases.
type Code string

const (
	// Auth
	CodeUnauthorized      Code = "unauthorized"
	CodeWSAuthFailed      Code = "ws_auth_failed"
	CodeInitDataEmpty     Code = "initData_empty"
	CodeHashMissing       Code = "hash_missing"
	CodeAuthDateMissing   Code = "auth_date_missing"
	CodeAuthDateInvalid   Code = "auth_date_invalid"
	CodeAuthDateExpired   Code = "auth_date_expired"
	CodeSignatureInvalid  Code = "signature_invalid"
	CodeUserMissing       Code = "user_missing"
	CodeUserInvalid       Code = "user_invalid"

	// Validation
	CodeInvalidRoomID      Code = "invalid_room_id"
	CodeInvalidPayload     Code = "invalid_payload"
	CodeCapacityInvalid    Code = "capacity_invalid"
	CodeRoomCodeRequired   Code = "room_code_required"
	CodeReadyInvalid       Code = "ready_invalid"

	// Lobby state
	CodeRoomNotFound      Code = "room_not_found"
	CodeRoomFull          Code = "room_full"
	CodeRoomClosed        Code = "room_closed"
	CodeRoomStarted       Code = "room_started"
	CodeNotAMember        Code = "not_a_member"
	CodeForbidden         Code = "forbidden"
	CodeNotRoomOwner      Code = "not_room_owner"
	CodeNotEnoughPlayers  Code = "not_enough_players"
	CodeNotAllReady       Code = "not_all_ready"
	CodeRoomCodeConflict  Code = "room_code_conflict"
	CodeWrongPassword     Code = "wrong_password"
	CodeRoomNotJoined     Code = "room_not_joined"

	// Match runtime
	CodeNotInRoom                  Code = "not_in_room"
	CodeNotEnoughWSPlayers         Code = "not_enough_ws_players"
	CodeRestartVoteAlreadyActive   Code = "restart_vote_already_active"
	CodeRestartProposeNotAllowed   Code = "restart_propose_not_allowed"
	CodeRestartProposeCooldown     Code = "restart_propose_cooldown"

	// Transport
	CodeInvalidMessage Code = "invalid_message"
	CodeInvalidJSON    Code = "invalid_json"

	// Generic
	CodeInternal Code = "internal_error"
)

// Error is a typed, coded error returned by store/lobby/match/identity
// services. The gateway surfaces Code to clients verbatim and never leaks Err.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error with no wrapped cause.
func New(code Code) *Error { return &Error{Code: code} }

// Wrap builds a coded error that carries an underlying cause for logs.
func Wrap(code Code, err error) *Error { return &Error{Code: code, Err: err} }

// CodeOf extracts the Code from err if it (or something it wraps) is *Error,
// defaulting to CodeInternal so the gateway never forwards a raw Go error.
func CodeOf(err error) Code {
	var ce *Error
	if err == nil {
		return ""
	}
	if asError(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
