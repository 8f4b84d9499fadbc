package ws

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	roomKindIncident     = "incident"
	roomKindConversation = "conversation"

	maxRoomMessages = 500
)

// roomName is a parsed room identifier. Incident rooms are public;
// conversation rooms belong to one user and admit only that user or an
// admin.
type roomName struct {
	kind string
	id   string
}

func (n roomName) String() string { return n.kind + ":" + n.id }

func (n roomName) private() bool { return n.kind == roomKindConversation }

// ownerID is meaningful only for conversation rooms.
func (n roomName) ownerID() string { return n.id }

func parseRoomName(raw string) (roomName, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || id == "" {
		return roomName{}, fmt.Errorf("malformed room name %q", raw)
	}
	switch kind {
	case roomKindIncident, roomKindConversation:
		return roomName{kind: kind, id: id}, nil
	default:
		return roomName{}, fmt.Errorf("unknown room namespace %q", kind)
	}
}

type roomMessage struct {
	MessageID  string `json:"message_id"`
	Room       string `json:"room"`
	SequenceID int64  `json:"sequence_id"`
	SentAt     string `json:"sent_at"`
	SenderID   string `json:"sender_id"`
	Body       string `json:"body"`
}

type room struct {
	mu           sync.Mutex
	name         roomName
	nextSequence int64
	messages     []roomMessage
	subscribers  map[*wsPeer]struct{}
}

func newRoom(name roomName) *room {
	return &room{
		name:        name,
		subscribers: make(map[*wsPeer]struct{}),
	}
}

func (r *room) join(peer *wsPeer) int64 {
	r.mu.Lock()
	r.subscribers[peer] = struct{}{}
	latest := r.nextSequence
	r.mu.Unlock()
	return latest
}

func (r *room) leave(peer *wsPeer) {
	r.mu.Lock()
	delete(r.subscribers, peer)
	r.mu.Unlock()
}

// appendMessage records the message and returns it along with the peers
// to notify.
func (r *room) appendMessage(senderID, body string) (roomMessage, []*wsPeer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSequence++
	msg := roomMessage{
		MessageID:  fmt.Sprintf("msg_%d", time.Now().UnixNano()),
		Room:       r.name.String(),
		SequenceID: r.nextSequence,
		SentAt:     time.Now().UTC().Format(time.RFC3339),
		SenderID:   senderID,
		Body:       body,
	}

	r.messages = append(r.messages, msg)
	if len(r.messages) > maxRoomMessages {
		r.messages = r.messages[len(r.messages)-maxRoomMessages:]
	}

	subscribers := make([]*wsPeer, 0, len(r.subscribers))
	for subscriber := range r.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	return msg, subscribers
}

type roomHub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[string]*room)}
}

func (h *roomHub) room(name roomName) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[name.String()]
	if ok {
		return r
	}

	r = newRoom(name)
	h.rooms[name.String()] = r
	return r
}
