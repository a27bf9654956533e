package gateway

import (
	"bytes"
	"encoding/json"
	"image/png"
	"log"
	"net/http"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Admin wraps the gateway's supplemented ops surface (SPEC_FULL.md §9): a
// small, non-gameplay /internal/* HTTP API gated by INTERNAL_KEY plus a TOTP
// challenge, for force-finalizing rooms and inspecting live counts.
type Admin struct {
	gw        *Gateway
	totpKey   *otp.Key
	enrolled  bool
}

// NewAdmin mints a fresh TOTP secret for this process. The operator enrolls
// once via GET /internal/totp/enroll (InternalKey-gated only, since no TOTP
// exists yet) and every subsequent admin call must carry a valid code.
func NewAdmin(gw *Gateway) (*Admin, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "gridmatch",
		AccountName: "gateway-admin",
	})
	if err != nil {
		return nil, err
	}
	return &Admin{gw: gw, totpKey: key}, nil
}

// RegisterRoutes wires the admin surface onto mux (net/http, no router
// library, matching the teacher's direct stdlib mux usage).
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/internal/totp/enroll", a.handleEnroll)
	mux.HandleFunc("/internal/metrics", a.withAuth(a.handleMetrics))
	mux.HandleFunc("/internal/rooms/finalize", a.withAuth(a.handleFinalize))
}

func (a *Admin) checkInternalKey(r *http.Request) bool {
	key := a.gw.cfg.InternalKey
	return key != "" && r.Header.Get("X-Internal-Key") == key
}

// withAuth requires both the internal key and a valid current TOTP code
// (X-TOTP-Code), so a leaked INTERNAL_KEY alone cannot drive the admin API.
func (a *Admin) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.checkInternalKey(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		code := r.Header.Get("X-TOTP-Code")
		if code == "" || !totp.Validate(code, a.totpKey.Secret()) {
			http.Error(w, "invalid totp code", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleEnroll serves the QR enrollment image once per process lifetime.
// Gated only by INTERNAL_KEY since there's no TOTP secret to challenge yet.
func (a *Admin) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if !a.checkInternalKey(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if a.enrolled {
		http.Error(w, "already enrolled this process lifetime", http.StatusGone)
		return
	}

	bc, err := qr.Encode(a.totpKey.String(), qr.M, qr.Auto)
	if err != nil {
		http.Error(w, "failed to encode qr", http.StatusInternalServerError)
		return
	}
	bc, err = barcode.Scale(bc, 256, 256)
	if err != nil {
		http.Error(w, "failed to scale qr", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, bc); err != nil {
		http.Error(w, "failed to render qr", http.StatusInternalServerError)
		return
	}

	a.enrolled = true
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (a *Admin) handleMetrics(w http.ResponseWriter, r *http.Request) {
	a.gw.mu.RLock()
	connected := len(a.gw.clients)
	rooms := len(a.gw.rooms)
	a.gw.mu.RUnlock()

	writeJSONResponse(w, map[string]interface{}{
		"connectedCount": connected,
		"roomCount":      rooms,
		"matchCount":     a.gw.matches.Count(),
	})
}

func (a *Admin) handleFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RoomCode == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	a.gw.finalizeRoom(in.RoomCode)
	log.Printf("gateway: admin force-finalized room %s", in.RoomCode)
	writeJSONResponse(w, map[string]interface{}{"ok": true})
}

func writeJSONResponse(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("gateway: admin response encode error: %v", err)
	}
}
