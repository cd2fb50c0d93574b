/**
 * @description
 * This file contains the HTTP handlers for hb-server's admin API. The admin
 * surface is deliberately small: branch staff unblock cards whose PIN
 * attempt counter hit the maximum, inspect a card's lockout state, and
 * probe service health. It is never exposed to kiosks.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/store: Card row access and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/herbank/hb-server/internal/store"
)

// AdminHandlers holds the store that admin handlers operate on.
type AdminHandlers struct {
	repo      store.Repository
	pinTryMax uint8
}

// NewAdminHandlers creates a new instance of AdminHandlers.
func NewAdminHandlers(repo store.Repository, pinTryMax uint8) *AdminHandlers {
	return &AdminHandlers{repo: repo, pinTryMax: pinTryMax}
}

// cardStatusResponse reports a card's lockout state.
type cardStatusResponse struct {
	CardUID  string `json:"card_uid"`
	Attempts uint8  `json:"attempts"`
	Blocked  bool   `json:"blocked"`
}

// GetCardHandler reports the PIN attempt counter and blocked state of a card.
func (h *AdminHandlers) GetCardHandler(w http.ResponseWriter, r *http.Request) {
	uid := strings.ToLower(chi.URLParam(r, "uid"))
	card, err := h.repo.FindCardByUID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			h.writeError(w, http.StatusNotFound, "Card not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_card msg=\"card lookup failed\" card_uid=%s err=%v", uid, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to look up card")
		return
	}

	h.writeJSON(w, http.StatusOK, cardStatusResponse{
		CardUID:  card.UID,
		Attempts: card.Attempts,
		Blocked:  card.Attempts >= h.pinTryMax,
	})
}

// UnblockCardHandler resets a card's PIN attempt counter. This is the only
// way a blocked card becomes usable again.
func (h *AdminHandlers) UnblockCardHandler(w http.ResponseWriter, r *http.Request) {
	uid := strings.ToLower(chi.URLParam(r, "uid"))
	card, err := h.repo.FindCardByUID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			h.writeError(w, http.StatusNotFound, "Card not found")
			return
		}
		log.Printf("level=error component=api endpoint=unblock_card msg=\"card lookup failed\" card_uid=%s err=%v", uid, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to look up card")
		return
	}

	if err := h.repo.ResetPINAttempts(r.Context(), card.ID); err != nil {
		log.Printf("level=error component=api endpoint=unblock_card msg=\"attempt reset failed\" card_uid=%s err=%v", uid, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to unblock card")
		return
	}

	log.Printf("level=info component=api endpoint=unblock_card outcome=ok card_uid=%s", uid)
	h.writeJSON(w, http.StatusOK, cardStatusResponse{
		CardUID:  card.UID,
		Attempts: 0,
		Blocked:  false,
	})
}

// writeJSON is a helper for writing JSON responses.
func (h *AdminHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *AdminHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
