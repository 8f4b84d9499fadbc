package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/websocket"

	"github.com/civitas-platform/identity-service/internal/domain"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
	maxMessageBodyRunes    = 2000
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Room string `json:"room"`
}

type joinedPayload struct {
	Room             string `json:"room"`
	LatestSequenceID int64  `json:"latest_sequence_id"`
	ServerTime       string `json:"server_time"`
}

type sendPayload struct {
	Body string `json:"body"`
}

type messageEnvelope struct {
	Message roomMessage `json:"message"`
}

type ackEnvelope struct {
	Result ackResult `json:"result"`
}

type ackResult struct {
	Status     string `json:"status"`
	MessageID  string `json:"message_id,omitempty"`
	SequenceID int64  `json:"sequence_id,omitempty"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

type wsSession struct {
	mu   sync.Mutex
	id   gateIdentity
	room *room
	peer *wsPeer
}

func newWSSession(id gateIdentity, peer *wsPeer) *wsSession {
	return &wsSession{id: id, peer: peer}
}

func (s *wsSession) setRoom(next *room) *room {
	s.mu.Lock()
	previous := s.room
	s.room = next
	s.mu.Unlock()
	return previous
}

func (s *wsSession) currentRoom() *room {
	s.mu.Lock()
	r := s.room
	s.mu.Unlock()
	return r
}

func (g *Gate) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	id := gateIdentity{}
	if request := conn.Request(); request != nil {
		if resolved, ok := request.Context().Value(gateCtxKey{}).(gateIdentity); ok {
			id = resolved
		}
	}

	decoder := json.NewDecoder(conn)
	session := newWSSession(id, newWSPeer(json.NewEncoder(conn)))
	defer func() {
		if r := session.currentRoom(); r != nil {
			r.leave(session.peer)
		}
	}()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(session.peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(session.peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "room.join":
			g.handleJoinFrame(conn.Request().Context(), session, frame)
		case "room.send":
			g.handleSendFrame(conn.Request().Context(), session, frame)
		default:
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func (g *Gate) handleJoinFrame(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid join payload")
		return
	}

	name, err := parseRoomName(payload.Room)
	if err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", err.Error())
		return
	}

	// Conversation rooms never admit anonymous peers; incident rooms
	// take anyone the gate let through.
	if name.private() && session.id.anonymous() {
		_ = writeWSError(session.peer, frame.RequestID, "FORBIDDEN", "identity required for conversation rooms")
		return
	}
	if name.private() {
		if allowed := g.allowConversation(ctx, name, session.id.userID); !allowed {
			_ = writeWSError(session.peer, frame.RequestID, "FORBIDDEN", "not a participant of this conversation")
			return
		}
	}

	r := g.hub.room(name)
	previous := session.setRoom(r)
	if previous != nil && previous != r {
		previous.leave(session.peer)
	}
	latest := r.join(session.peer)

	_ = session.peer.writeFrame(wsFrame{
		Type:      "room.joined",
		RequestID: frame.RequestID,
		Payload: mustJSON(joinedPayload{
			Room:             name.String(),
			LatestSequenceID: latest,
			ServerTime:       time.Now().UTC().Format(time.RFC3339),
		}),
	})
}

func (g *Gate) handleSendFrame(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload sendPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid send payload")
		return
	}

	body := strings.TrimSpace(payload.Body)
	if body == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "body is required")
		return
	}
	if utf8.RuneCountInString(body) > maxMessageBodyRunes {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "body must be at most 2000 characters")
		return
	}

	r := session.currentRoom()
	if r == nil {
		_ = writeWSError(session.peer, frame.RequestID, "FORBIDDEN", "must join a room before sending")
		return
	}

	// Private rooms re-check on every message, never on the cached join
	// decision.
	if r.name.private() {
		if session.id.anonymous() || !g.allowConversation(ctx, r.name, session.id.userID) {
			_ = writeWSError(session.peer, frame.RequestID, "FORBIDDEN", "not a participant of this conversation")
			return
		}
	}

	senderID := session.id.userID
	if senderID == "" {
		senderID = "anonymous"
	}
	msg, subscribers := r.appendMessage(senderID, body)

	_ = session.peer.writeFrame(wsFrame{
		Type:      "room.ack",
		RequestID: frame.RequestID,
		Payload: mustJSON(ackEnvelope{
			Result: ackResult{
				Status:     "ok",
				MessageID:  msg.MessageID,
				SequenceID: msg.SequenceID,
			},
		}),
	})

	messageFrame := wsFrame{
		Type:    "room.message",
		Payload: mustJSON(messageEnvelope{Message: msg}),
	}
	for _, subscriber := range subscribers {
		_ = subscriber.writeFrame(messageFrame)
	}
}

// allowConversation consults the relational store for the caller's
// current role. The owning user and admins pass; everyone else is
// refused, and a store failure refuses too.
func (g *Gate) allowConversation(ctx context.Context, name roomName, userID string) bool {
	if userID == name.ownerID() {
		return true
	}
	if g.users == nil {
		return false
	}
	u, err := g.users.GetByID(ctx, userID)
	if err != nil {
		g.log.Warn().Err(err).Str("user_id", userID).Str("room", name.String()).Msg("conversation role lookup failed")
		return false
	}
	return u.Role() == string(domain.RoleAdmin)
}

func writeWSError(peer *wsPeer, requestID, code, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      "room.error",
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{Code: code, Message: message},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
