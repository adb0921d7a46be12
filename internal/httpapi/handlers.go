package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	if s.probe != nil {
		components = s.probe(r.Context())
	}

	healthy := true
	for _, status := range components {
		if status != "ok" {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"healthy":    healthy,
		"components": components,
		"timestamp":  time.Now().UTC(),
	})
}

// handlePortfolio returns the full derived state for a profile,
// including per-position staleness flags.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile"]

	sess, err := s.sessions.Acquire(profileID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	state := sess.State()
	if state == nil {
		state, err = sess.RecomputeNow(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile"]

	sess, err := s.sessions.Acquire(profileID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	state := sess.State()
	if state == nil {
		state, err = sess.RecomputeNow(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile_id": state.ProfileID,
		"score":      state.Score,
		"risk":       state.Risk,
		"as_of":      state.ComputedAt,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	profiles, err := s.profiles.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Leaderboard query failed")
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": profiles,
		"as_of":   time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
