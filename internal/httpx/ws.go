package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/auth"
	"github.com/ariefcatur/go-appliance-care/internal/realtime"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = wsPongWait * 9 / 10
	wsMaxFrameSize   = 4096
	wsRepliesPending = 8
)

var errTopicForbidden = apperr.Forbidden("not allowed to join this topic")

// Subscriber hands out real-time subscriptions.
type Subscriber interface {
	Subscribe() *realtime.Subscription
}

type wsFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type wsReply struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Message string `json:"message,omitempty"`
}

// WSHandler upgrades authenticated clients to a WebSocket that streams
// real-time events for the topics they join. Every client starts joined
// to its own user topic.
type WSHandler struct {
	Hub      Subscriber
	Tokens   *auth.Tokens
	Users    IdentityResolver
	Bookings BookingService
	Orders   OrderService
	Log      *slog.Logger
	Upgrader websocket.Upgrader
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = bearerToken(r)
	}
	id, err := authenticate(r.Context(), h.Tokens, h.Users, raw)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	sub := h.Hub.Subscribe()
	if sub == nil {
		fail(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	defer sub.Close()

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.Log.Debug("websocket upgrade failed", "error", err)
		return
	}
	log := h.Log.With("user_id", id.UserID)
	sub.Join(realtime.TopicUser(id.UserID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	replies := make(chan wsReply, wsRepliesPending)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, conn, sub, replies, log)
	}()

	conn.SetReadLimit(wsMaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read failed", "error", err)
			}
			break
		}
		reply := h.handleFrame(ctx, id, sub, f)
		select {
		case replies <- reply:
		case <-done:
		}
	}
	cancel()
	<-done
}

func (h *WSHandler) handleFrame(ctx context.Context, id auth.Identity, sub *realtime.Subscription, f wsFrame) wsReply {
	switch f.Action {
	case "join":
		if err := h.authorize(ctx, id, f.Topic); err != nil {
			return wsReply{Type: "error", Topic: f.Topic, Message: apperr.Message(err)}
		}
		sub.Join(f.Topic)
		return wsReply{Type: "joined", Topic: f.Topic}
	case "leave":
		sub.Leave(f.Topic)
		return wsReply{Type: "left", Topic: f.Topic}
	default:
		return wsReply{Type: "error", Message: "action must be join or leave"}
	}
}

// authorize decides whether id may receive events for topic: its own user
// topic, bookings it can see and orders it owns. Admins may join any
// well-formed topic.
func (h *WSHandler) authorize(ctx context.Context, id auth.Identity, topic string) error {
	kind, ref, found := strings.Cut(topic, "-")
	if !found || ref == "" {
		return apperr.Validation("topic must look like booking-<id>, order-<id> or user-<id>")
	}
	switch kind {
	case "user":
		if id.IsAdmin() || ref == id.UserID {
			return nil
		}
		return errTopicForbidden
	case "booking":
		if id.IsAdmin() {
			return nil
		}
		if _, err := h.Bookings.Get(ctx, id, ref); err != nil {
			return topicError(err)
		}
		return nil
	case "order":
		if id.IsAdmin() {
			return nil
		}
		if _, err := h.Orders.Get(ctx, id, ref); err != nil {
			return topicError(err)
		}
		return nil
	default:
		return apperr.Validation("unknown topic " + kind)
	}
}

// topicError keeps lookup failures from revealing whether an entity exists.
func topicError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindForbidden:
		return errTopicForbidden
	}
	return err
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *realtime.Subscription, replies <-chan wsReply, log *slog.Logger) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v)
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case ev, open := <-sub.Events():
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(wsWriteWait))
				return
			}
			if err := write(ev); err != nil {
				log.Debug("websocket write failed", "error", err)
				return
			}
		case reply := <-replies:
			if err := write(reply); err != nil {
				log.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Debug("websocket ping failed", "error", err)
				}
				return
			}
		}
	}
}
