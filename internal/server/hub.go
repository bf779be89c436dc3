package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rohmanhakim/krishield/internal/community"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// chatHub fans posted messages out to the websocket subscribers of each community.
type chatHub struct {
	mu     sync.Mutex
	rooms  map[string]map[*websocket.Conn]struct{}
	logger zerolog.Logger
}

func newChatHub(logger zerolog.Logger) *chatHub {
	return &chatHub{rooms: make(map[string]map[*websocket.Conn]struct{}), logger: logger}
}

// join sends hello to conn and subscribes it. Once hello arrives, the client
// is guaranteed to see every later broadcast.
func (h *chatHub) join(communityID string, conn *websocket.Conn, hello community.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := conn.WriteJSON(hello); err != nil {
		return err
	}
	room, ok := h.rooms[communityID]
	if !ok {
		room = make(map[*websocket.Conn]struct{})
		h.rooms[communityID] = room
	}
	room[conn] = struct{}{}
	h.logger.Debug().Str("community_id", communityID).Int("subscribers", len(room)).Msg("chat subscriber joined")
	return nil
}

func (h *chatHub) leave(communityID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(communityID, conn)
}

// remove expects h.mu to be held.
func (h *chatHub) remove(communityID string, conn *websocket.Conn) {
	room := h.rooms[communityID]
	if _, ok := room[conn]; !ok {
		return
	}
	delete(room, conn)
	conn.Close()
	if len(room) == 0 {
		delete(h.rooms, communityID)
	}
}

// broadcast writes msg to every subscriber of the community. A subscriber
// whose write fails is dropped.
func (h *chatHub) broadcast(communityID string, msg community.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[communityID] {
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Warn().Err(err).Str("community_id", communityID).Msg("dropping chat subscriber")
			h.remove(communityID, conn)
		}
	}
}

// streamHandler upgrades to a websocket that receives every message posted
// to the community from now on.
func (s *Server) streamHandler(c echo.Context) error {
	id := c.Param("id")
	group, err := s.app.Community.Get(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	hello := community.Message{
		Sender:    community.SystemSender,
		Text:      "Connected to " + group.Name,
		Timestamp: s.app.Now().UnixMilli(),
	}
	if err := s.hub.join(id, ws, hello); err != nil {
		ws.Close()
		return nil
	}
	defer s.hub.leave(id, ws)

	// nothing is expected from the client; reading detects the close
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return nil
		}
	}
}
