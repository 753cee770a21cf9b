package bridge

import (
	"context"
	"encoding/json"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"go.uber.org/zap"
)

// Hub fans the widget's outward events out to the connected host clients.
type Hub struct {
	W   Widget
	log *zap.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	commands   chan command
	done       chan struct{}

	// subject -> set of connections (several tabs or processes per host)
	clients map[string]map[*Client]bool
}

func NewHub(w Widget, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		W:          w,
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		commands:   make(chan command, 16),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]bool),
	}
}

// Attach forwards the widget events to the hub. Dispose the returned handle
// to stop.
func (h *Hub) Attach() vent.Handle {
	var td vent.Teardown
	td.Add(h.W.On(vent.MessageReceived, func(p any) { h.publishMessage(vent.MessageReceived, p) }))
	td.Add(h.W.On(vent.MessageSent, func(p any) { h.publishMessage(vent.MessageSent, p) }))
	td.Add(h.W.On(vent.UnreadChanged, func(p any) {
		n, ok := p.(int)
		if !ok {
			return
		}
		h.Broadcast(WireEvent{Type: vent.UnreadChanged, Unread: &n})
	}))
	return vent.HandleFunc(td.Run)
}

func (h *Hub) publishMessage(topic string, p any) {
	msg, ok := p.(models.Message)
	if !ok {
		return
	}
	h.Broadcast(WireEvent{Type: topic, Message: &msg})
}

// Broadcast queues ev for every client. It never blocks the publisher: when
// the queue is full the event is dropped.
func (h *Hub) Broadcast(ev WireEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal wire event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn("hub backlog full, event dropped", zap.String("type", ev.Type))
	}
}

// Run owns the client set until ctx is cancelled. Every client is closed on
// return.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					close(client.Send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return
		case client := <-h.register:
			if h.clients[client.Subject] == nil {
				h.clients[client.Subject] = make(map[*Client]bool)
			}
			h.clients[client.Subject][client] = true
			h.log.Debug("host client connected", zap.String("subject", client.Subject))
		case client := <-h.unregister:
			if set, ok := h.clients[client.Subject]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.Send)
					if len(set) == 0 {
						delete(h.clients, client.Subject)
					}
				}
			}
		case payload := <-h.broadcast:
			for subject, set := range h.clients {
				for client := range set {
					select {
					case client.Send <- payload:
					default:
						// slow/broken client → drop
						close(client.Send)
						delete(set, client)
						h.log.Warn("dropped slow host client", zap.String("subject", subject))
					}
				}
			}
		case cmd := <-h.commands:
			h.handle(ctx, cmd)
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) handle(ctx context.Context, cmd command) {
	var err error
	switch cmd.Type {
	case "read":
		err = h.W.OnInputRead(ctx)
	case "focus":
		err = h.W.OnFocus(ctx)
	case "open":
		err = h.W.Open()
	case "close":
		err = h.W.Close(ctx)
	default:
		h.log.Debug("unknown host command", zap.String("type", cmd.Type))
		return
	}
	if err != nil {
		h.log.Warn("host command failed", zap.String("type", cmd.Type), zap.Error(err))
	}
}
