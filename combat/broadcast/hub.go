package broadcast

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"rpgserver/combat/engine"
	"rpgserver/models"
)

// Presence はオンライン中のキャラクター
type Presence struct {
	CharacterID uint      `json:"characterId"`
	Name        string    `json:"name"`
	SessionID   string    `json:"sessionId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Subscriber は1本のWebSocket接続に対応する配信先
type Subscriber struct {
	Client *models.Client

	send      chan []byte
	sessionID string // hub.mu で保護
	closed    bool

	kicked   chan struct{}
	kickOnce sync.Once
}

// Send は書き込みループが読むチャネル。Unregister で閉じられる
func (s *Subscriber) Send() <-chan []byte { return s.send }

// Kicked は取りこぼしの許されないフレームを受け取れなかったときに閉じられる。
// 書き込みループはこれを見て接続を切り、クライアントは再接続で状態を取り直す
func (s *Subscriber) Kicked() <-chan struct{} { return s.kicked }

func (s *Subscriber) kick() {
	s.kickOnce.Do(func() { close(s.kicked) })
}

type presenceEntry struct {
	Presence
	conns int
}

// Hub fans session events out to subscribers without blocking the caller. A subscriber
// whose buffer is full loses that frame; the next full snapshot supersedes it. Pending
// attack frames have no such successor, so a GM that cannot take one is disconnected.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Subscriber]bool
	rooms    map[string]map[*Subscriber]bool
	presence map[uint]*presenceEntry

	buffer int
	logger *zap.Logger
	now    func() time.Time
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		clients:  make(map[*Subscriber]bool),
		rooms:    make(map[string]map[*Subscriber]bool),
		presence: make(map[uint]*presenceEntry),
		buffer:   buffer,
		logger:   logger,
		now:      time.Now,
	}
}

// Register adds a connected client. Player clients become present immediately.
func (h *Hub) Register(client *models.Client) *Subscriber {
	sub := &Subscriber{Client: client, send: make(chan []byte, h.buffer), kicked: make(chan struct{})}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[sub] = true
	if client.CharacterID != 0 {
		entry, ok := h.presence[client.CharacterID]
		if !ok {
			entry = &presenceEntry{Presence: Presence{
				CharacterID: client.CharacterID,
				Name:        client.Name,
				ConnectedAt: h.now(),
			}}
			h.presence[client.CharacterID] = entry
		}
		entry.conns++
		h.notifyPresenceLocked()
	}
	h.logger.Info("Client registered", zap.Uint("userID", client.UserID), zap.String("role", client.Role))
	return sub
}

// Unregister はクライアントを全ルームから外し、送信チャネルを閉じる
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[sub] {
		return
	}
	h.leaveLocked(sub)
	delete(h.clients, sub)
	sub.closed = true
	close(sub.send)

	if id := sub.Client.CharacterID; id != 0 {
		if entry, ok := h.presence[id]; ok {
			entry.conns--
			if entry.conns <= 0 {
				delete(h.presence, id)
			}
		}
		h.notifyPresenceLocked()
	}
	h.logger.Info("Client unregistered", zap.Uint("userID", sub.Client.UserID))
}

// Join は購読するセッションを切り替える
func (h *Hub) Join(sub *Subscriber, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[sub] {
		return
	}
	h.leaveLocked(sub)
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*Subscriber]bool)
		h.rooms[sessionID] = room
	}
	room[sub] = true
	sub.sessionID = sessionID
	if entry, ok := h.presence[sub.Client.CharacterID]; ok {
		entry.SessionID = sessionID
	}
	h.notifyPresenceLocked()
}

func (h *Hub) Leave(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sub)
	h.notifyPresenceLocked()
}

// SessionOf は購読中のセッションIDを返す
func (h *Hub) SessionOf(sub *Subscriber) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sub.sessionID
}

func (h *Hub) leaveLocked(sub *Subscriber) {
	if sub.sessionID == "" {
		return
	}
	room := h.rooms[sub.sessionID]
	delete(room, sub)
	if len(room) == 0 {
		delete(h.rooms, sub.sessionID)
	}
	// 同じキャラクターの別接続がまだルームにいればプレゼンスは残す
	if entry, ok := h.presence[sub.Client.CharacterID]; ok && entry.SessionID == sub.sessionID && !h.characterInRoomLocked(room, sub.Client.CharacterID) {
		entry.SessionID = ""
	}
	sub.sessionID = ""
}

func (h *Hub) characterInRoomLocked(room map[*Subscriber]bool, characterID uint) bool {
	for other := range room {
		if other.Client.CharacterID == characterID {
			return true
		}
	}
	return false
}

// Online はセッションのオンラインキャラクター。sessionID が空なら全員
func (h *Hub) Online(sessionID string) []Presence {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineLocked(sessionID)
}

func (h *Hub) onlineLocked(sessionID string) []Presence {
	out := make([]Presence, 0, len(h.presence))
	for _, entry := range h.presence {
		if sessionID != "" && entry.SessionID != sessionID {
			continue
		}
		out = append(out, entry.Presence)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CharacterID < out[j].CharacterID })
	return out
}

func (h *Hub) PublishCombat(sessionID string, snapshot engine.Snapshot) {
	h.publishRoom(sessionID, models.EventCombatUpdate, snapshot, false)
}

// PublishPendingAttacks は保留中の攻撃をGMにだけ送る
func (h *Hub) PublishPendingAttacks(sessionID string, attacks []engine.PendingAttack) {
	h.publishRoom(sessionID, models.EventPendingAttacksUpdate, attacks, true)
}

// PublishCharacterUpdate はそのキャラクターのプレイヤーにだけ送る
func (h *Hub) PublishCharacterUpdate(characterID uint, fields map[string]int) {
	msg, ok := h.encode(models.EventCharacterUpdate, map[string]any{
		"characterId": characterID,
		"fields":      fields,
	})
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.clients {
		if sub.Client.CharacterID == characterID {
			h.enqueue(sub, msg)
		}
	}
}

// CloseSession はルームを解散する。接続自体は維持する
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.rooms[sessionID] {
		h.leaveLocked(sub)
	}
	delete(h.rooms, sessionID)
	h.notifyPresenceLocked()
}

// SendTo は1クライアントへ直接送る
func (h *Hub) SendTo(sub *Subscriber, msgType string, payload any) {
	msg, ok := h.encode(msgType, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.enqueue(sub, msg)
}

func (h *Hub) publishRoom(sessionID, msgType string, payload any, gmOnly bool) {
	msg, ok := h.encode(msgType, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[sessionID] {
		if gmOnly && !sub.Client.IsGM() {
			continue
		}
		if !h.enqueue(sub, msg) && gmOnly {
			h.logger.Warn("Disconnecting GM that missed pending attacks",
				zap.Uint("userID", sub.Client.UserID), zap.String("sessionID", sessionID))
			sub.kick()
		}
	}
}

// notifyPresenceLocked は各GMに自分のルームのプレゼンスを送る
func (h *Hub) notifyPresenceLocked() {
	for sub := range h.clients {
		if !sub.Client.IsGM() {
			continue
		}
		msg, ok := h.encode(models.EventOnlineCharacters, h.onlineLocked(sub.sessionID))
		if !ok {
			return
		}
		h.enqueue(sub, msg)
	}
}

// enqueue は読み取りロック以上を保持して呼ぶ。バッファが一杯なら false
func (h *Hub) enqueue(sub *Subscriber, msg []byte) bool {
	if sub.closed {
		return true
	}
	select {
	case sub.send <- msg:
		return true
	default:
		h.logger.Warn("Dropping frame for slow client",
			zap.Uint("userID", sub.Client.UserID), zap.String("sessionID", sub.sessionID))
		return false
	}
}

func (h *Hub) encode(msgType string, payload any) ([]byte, bool) {
	msg, err := json.Marshal(models.WsMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.String("type", msgType), zap.Error(err))
		return nil, false
	}
	return msg, true
}
