package chat

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tripline-dev/tripline/internal/models"
	"github.com/tripline-dev/tripline/internal/workers"
	"gorm.io/gorm"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// inboundPayload is what clients send. Anything without a non-empty message
// field is silently ignored.
type inboundPayload struct {
	Message string `json:"message"`
}

// ExtractCredential pulls the bearer credential for a realtime connection:
// the token or access query parameter first, then the Sec-WebSocket-Protocol
// header, then the Authorization header, taking the last whitespace-delimited
// field of whichever header is present.
func ExtractCredential(r *http.Request) (string, bool) {
	query := r.URL.Query()

	token := query.Get("token")

	if token == "" {
		token = query.Get("access")
	}

	if token == "" {
		header := r.Header.Get("Sec-WebSocket-Protocol")

		if header == "" {
			header = r.Header.Get("Authorization")
		}

		if header != "" {
			fields := strings.Fields(header)
			token = fields[len(fields)-1]
		}
	}

	if token == "" {
		return "", false
	}

	return token, true
}

// Session is the per-connection state for one authenticated chat
// participant: its identity, its trip, and the plumbing that moves events
// between the connection and the registry. It exists only while the
// connection is open.
type Session struct {
	tripID    uint
	userID    uint
	username  string
	tripTitle string

	conn     *websocket.Conn
	registry *Registry
	pool     *workers.Pool
	db       *gorm.DB

	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(conn *websocket.Conn, registry *Registry, pool *workers.Pool, database *gorm.DB, tripID uint, user models.User, tripTitle string) *Session {
	return &Session{
		tripID:    tripID,
		userID:    user.ID,
		username:  user.Username,
		tripTitle: tripTitle,
		conn:      conn,
		registry:  registry,
		pool:      pool,
		db:        database,
		send:      make(chan Event, sendBuffer),
		done:      make(chan struct{}),
	}
}

// Run registers the session with the registry and services the connection
// until the client disconnects. The caller must have authenticated and
// authorized the user already; Run does not re-check membership.
func (s *Session) Run() {
	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		s.conn.Close()
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.registry.Join(s.tripID, s)
	defer s.close()

	go s.writePump()
	s.readPump()
}

// close unregisters the session and releases the connection. Safe to call
// from either pump; only the first call does anything.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.registry.Leave(s.tripID, s)
		close(s.done)
		s.conn.Close()
	})
}

// enqueue hands a broadcast event to the session's writer. Delivery is
// best-effort: events for a client that cannot drain its buffer are dropped.
func (s *Session) enqueue(event Event) {
	select {
	case s.send <- event:
	case <-s.done:
	default:
		log.Printf("Dropping chat event for slow client in trip %d", s.tripID)
	}
}

// readPump processes inbound payloads strictly sequentially for this
// connection.
func (s *Session) readPump() {
	for {
		_, raw, err := s.conn.ReadMessage()

		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for trip %d: %v", s.tripID, err)
			}
			return
		}

		var payload inboundPayload

		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}

		if payload.Message == "" {
			continue
		}

		s.handleMessage(payload.Message)
	}
}

// handleMessage persists the message and fans out notifications on the
// worker pool, then broadcasts the event to every session in the trip's
// room. The pool call is awaited, so this session's inbound order is
// preserved while other connections keep dispatching.
func (s *Session) handleMessage(content string) {
	var persistErr error

	s.pool.Do(func() {
		message := models.Message{
			TripID:   s.tripID,
			SenderID: s.userID,
			Content:  content,
		}

		if persistErr = s.db.Create(&message).Error; persistErr != nil {
			log.Printf("Failed to store message for trip %d: %v", s.tripID, persistErr)
			return
		}

		s.notifyMembers()
	})

	if persistErr != nil {
		return
	}

	s.registry.Broadcast(s.tripID, Event{
		Message:   content,
		Sender:    s.username,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// notifyMembers creates one notification per approved member of the trip,
// excluding the sender. The recipient set is re-derived from the ledger on
// every send. Failures for individual recipients are logged and skipped;
// they never roll back the stored message.
func (s *Session) notifyMembers() {
	var members []models.TripMember

	err := s.db.Where("trip_id = ? AND status = ? AND user_id <> ?", s.tripID, models.StatusApproved, s.userID).
		Find(&members).Error

	if err != nil {
		log.Printf("Failed to load members for trip %d: %v", s.tripID, err)
		return
	}

	content := fmt.Sprintf("💬 New message in %q", s.tripTitle)

	for _, member := range members {
		notification := models.Notification{
			UserID:  member.UserID,
			Content: content,
		}

		if err := s.db.Create(&notification).Error; err != nil {
			log.Printf("Failed to create notification for user %d: %v", member.UserID, err)
		}
	}
}

// writePump forwards broadcast events to the client and keeps the
// connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case event := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.close()
				return
			}

			if err := s.conn.WriteJSON(event); err != nil {
				log.Printf("Failed to write chat event for trip %d: %v", s.tripID, err)
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.close()
				return
			}

			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}
