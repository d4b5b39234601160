// server/rest.go
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/models"
	"github.com/ShomaShirai/Ito-game/persistence"
)

type roomLookupResponse struct {
	RoomCode    string `json:"room_code"`
	Status      string `json:"status"`
	PlayerCount int    `json:"player_count"`
	Joinable    bool   `json:"joinable"`
}

// handleRoomLookup lets a browser check a code before joining.
func (s *GameServer) handleRoomLookup(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(mux.Vars(r)["code"])

	rm, err := s.store.GetRoomByCode(r.Context(), code)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.Errorf("room lookup %s: %v", code, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	players, err := s.registry.Players(r.Context(), rm.ID)
	if err != nil {
		logger.Log.Errorf("room lookup players %s: %v", code, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(roomLookupResponse{
		RoomCode:    rm.RoomCode,
		Status:      string(rm.Status),
		PlayerCount: len(players),
		Joinable:    rm.Status == models.RoomWaiting,
	})
}

// handleRoomQR renders an invite QR code pointing at the join page.
func (s *GameServer) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(mux.Vars(r)["code"])

	if _, err := s.store.GetRoomByCode(r.Context(), code); err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		logger.Log.Errorf("room qr %s: %v", code, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	base := s.publicBaseURL
	if base == "" {
		base = "http://" + r.Host
	}
	joinURL := fmt.Sprintf("%s/join?code=%s", strings.TrimRight(base, "/"), code)

	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		logger.Log.Errorf("encode qr for %s: %v", code, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
