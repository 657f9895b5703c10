package ws

import (
	"context"
	"encoding/json"
	"time"

	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LiveChannel carries pushes from processes that hold no sockets (the
// scheduler) to the API process that does.
const LiveChannel = "raccordement:live"

const publishTimeout = 2 * time.Second

const (
	scopeUser = "user"
	scopeAll  = "all"
	scopeRole = "role"
)

type relayMessage struct {
	Scope  string          `json:"scope"`
	UserID uuid.UUID       `json:"userId,omitempty"`
	Role   string          `json:"role,omitempty"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Publisher has the Hub's push methods but sends every message through
// Redis.
type Publisher struct {
	client *redis.Client
	log    *logger.Logger
}

func NewPublisher(client *redis.Client, log *logger.Logger) *Publisher {
	return &Publisher{client: client, log: log}
}

func (p *Publisher) SendToUser(userID uuid.UUID, msgType string, data any) {
	p.publish(relayMessage{Scope: scopeUser, UserID: userID, Type: msgType}, data)
}

func (p *Publisher) Broadcast(msgType string, data any) {
	p.publish(relayMessage{Scope: scopeAll, Type: msgType}, data)
}

func (p *Publisher) BroadcastToRole(role, msgType string, data any) {
	p.publish(relayMessage{Scope: scopeRole, Role: role, Type: msgType}, data)
}

func (p *Publisher) publish(m relayMessage, data any) {
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			p.log.Warn("live relay encode failed", "type", m.Type, "error", err)
			return
		}
		m.Data = raw
	}
	payload, err := json.Marshal(m)
	if err != nil {
		p.log.Warn("live relay encode failed", "type", m.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, LiveChannel, payload).Err(); err != nil {
		p.log.Warn("live relay publish failed", "type", m.Type, "error", err)
	}
}

// Relay replays messages from LiveChannel to local sockets until ctx ends.
func (h *Hub) Relay(ctx context.Context, client *redis.Client) {
	sub := client.Subscribe(ctx, LiveChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	h.log.Info("live relay subscribed", "channel", LiveChannel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.replay(msg.Payload)
		}
	}
}

func (h *Hub) replay(payload string) {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		h.log.Warn("live relay message dropped", "error", err)
		return
	}
	var data any
	if len(m.Data) > 0 {
		data = m.Data
	}
	switch m.Scope {
	case scopeUser:
		h.SendToUser(m.UserID, m.Type, data)
	case scopeRole:
		h.BroadcastToRole(m.Role, m.Type, data)
	case scopeAll:
		h.Broadcast(m.Type, data)
	default:
		h.log.Warn("live relay scope unknown", "scope", m.Scope)
	}
}
