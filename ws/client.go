package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-core/domain"
	apperrors "chat-core/errors"
	"chat-core/services"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var validate = validator.New()

// Client pumps one websocket connection: inbound events are decoded,
// rate-limited and dispatched to the chat service; outbound events arrive on
// the send channel via the connection's Sink.
type Client struct {
	connID  domain.ConnectionID
	user    domain.User
	conn    *websocket.Conn
	service services.IChatService
	send    chan []byte
	limiter *rate.Limiter
	log     *slog.Logger
}

func newClient(connID domain.ConnectionID, user domain.User, conn *websocket.Conn,
	service services.IChatService, send chan []byte, limiter *rate.Limiter,
	log *slog.Logger) *Client {
	return &Client{
		connID:  connID,
		user:    user,
		conn:    conn,
		service: service,
		send:    send,
		limiter: limiter,
		log:     log,
	}
}

// readPump pumps inbound events until the transport closes, then runs the
// full lifecycle cleanup exactly once.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		// The request context is gone once the peer dropped; cleanup runs on
		// its own context.
		c.service.Disconnect(context.Background(), c.connID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Connection closed abnormally", "connection", c.connID, "error", err)
			}
			return
		}

		var env Envelope
		if err = json.Unmarshal(data, &env); err != nil {
			c.reply(encodeError("malformed event envelope"))
			continue
		}
		if !c.limiter.Allow() {
			c.reply(encodeError("rate limit exceeded"))
			continue
		}
		if !c.dispatch(ctx, env) {
			return
		}
	}
}

// dispatch handles one inbound event. Per-operation failures are echoed to
// this connection only; the connection itself stays open. Returns false when
// the client asked to close.
func (c *Client) dispatch(ctx context.Context, env Envelope) bool {
	switch env.Event {
	case "subscribe":
		var req subscribeRequest
		if !c.decode(env.Payload, &req) {
			return true
		}
		err := c.service.Subscribe(ctx, domain.SubscribeCommand{
			ConnectionID: c.connID,
			ChannelID:    domain.ChannelID(req.ChannelID),
		})
		if err != nil {
			c.replyError(err)
		}

	case "sendMessage":
		var req sendMessageRequest
		if !c.decode(env.Payload, &req) {
			return true
		}
		_, err := c.service.Send(ctx, domain.SendMessageCommand{
			ConnectionID: c.connID,
			ChannelID:    domain.ChannelID(req.ChannelID),
			Payload:      domain.Payload{Text: req.Text, ImageRef: req.ImageRef},
		})
		if err != nil {
			// The sender is notified; recipients never see a failed message.
			c.replyError(err)
		}

	case "typing", "stopTyping":
		var req typingRequest
		if !c.decode(env.Payload, &req) {
			return true
		}
		err := c.service.Typing(ctx, domain.TypingCommand{
			ConnectionID: c.connID,
			ChannelID:    domain.ChannelID(req.ChannelID),
			Active:       env.Event == "typing",
		})
		if err != nil {
			c.replyError(err)
		}

	case "startDm":
		var req startDmRequest
		if !c.decode(env.Payload, &req) {
			return true
		}
		channel, _, err := c.service.StartDm(ctx, domain.StartDmCommand{
			ConnectionID: c.connID,
			OtherUserID:  req.UserID,
		})
		if err != nil {
			c.replyError(err)
			return true
		}
		if ack, err := encodeDmAck(channel); err == nil {
			c.reply(ack)
		}

	case "logout":
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logout"),
			time.Now().Add(writeWait))
		return false

	default:
		c.reply(encodeError(fmt.Sprintf("unknown event %q", env.Event)))
	}
	return true
}

// decode unmarshals and validates an inbound payload, echoing a validation
// error to the sender on failure.
func (c *Client) decode(raw json.RawMessage, req any) bool {
	if err := json.Unmarshal(raw, req); err != nil {
		c.reply(encodeError("malformed payload"))
		return false
	}
	if err := validate.Struct(req); err != nil {
		c.reply(encodeError(fmt.Sprintf("invalid payload: %v", err)))
		return false
	}
	return true
}

func (c *Client) replyError(err error) {
	c.reply(encodeError(apperrors.MapToWireMessage(err)))
}

// reply is best-effort: if the send buffer is full the error echo is dropped
// with the rest of the connection's backlog.
func (c *Client) reply(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// writePump drains the send channel to the peer and keeps the connection
// alive with pings. It exits on the first failed write, which follows the
// transport closing.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
