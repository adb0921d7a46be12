package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quantclub/paperledger/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboard origins are already covered by the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHub tracks open websocket connections so shutdown can close them.
type wsHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *wsHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *wsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]struct{})
}

// handlePortfolioWS streams every newly published portfolio state for
// a profile to the dashboard, starting with the current one.
func (s *Server) handlePortfolioWS(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile"]

	sess, err := s.sessions.Acquire(profileID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("profile", profileID).Msg("Websocket upgrade failed")
		return
	}
	s.hub.add(conn)

	// Buffered so a slow client drops frames instead of blocking the
	// session's publish path.
	updates := make(chan *engine.State, 8)
	unsubscribe := sess.Subscribe(func(state *engine.State) {
		select {
		case updates <- state:
		default:
		}
	})

	defer func() {
		unsubscribe()
		s.hub.remove(conn)
		conn.Close()
	}()

	if state := sess.State(); state != nil {
		if err := writeState(conn, state); err != nil {
			return
		}
	}

	// Drain client frames so pings and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case state := <-updates:
			if err := writeState(conn, state); err != nil {
				return
			}
		}
	}
}

func writeState(conn *websocket.Conn, state *engine.State) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(state)
}
