package faye

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("faye: client closed")

// Client is a Bayeux client speaking the websocket connection type.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger
	exts []Extension

	mu       sync.Mutex
	clientID string
	nextID   int64
	pending  map[string]chan Message
	handlers map[string]func(json.RawMessage)

	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens the websocket and starts the pumps. The Bayeux handshake is not
// performed; see Handshake.
func Dial(ctx context.Context, url string, dialer *websocket.Dialer, log *zap.Logger, exts ...Extension) (*Client, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if log == nil {
		log = zap.NewNop()
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "faye: dial %s", url)
	}

	c := &Client{
		conn:     conn,
		send:     make(chan []byte, 64),
		log:      log,
		exts:     exts,
		pending:  make(map[string]chan Message),
		handlers: make(map[string]func(json.RawMessage)),
		done:     make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

// ClientID is the id assigned by the server during the handshake.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Handshake negotiates a client id and starts the connect loop.
func (c *Client) Handshake(ctx context.Context) error {
	reply, err := c.request(ctx, Message{
		Channel:                  ChannelHandshake,
		Version:                  bayeuxVersion,
		SupportedConnectionTypes: []string{"websocket"},
	})
	if err != nil {
		return err
	}
	if !reply.Successful {
		return errors.Errorf("faye: handshake refused: %s", reply.Error)
	}

	c.mu.Lock()
	c.clientID = reply.ClientID
	c.mu.Unlock()

	c.connect()
	return nil
}

// Subscribe registers fn for channel and waits for the server to confirm.
func (c *Client) Subscribe(ctx context.Context, channel string, fn func(json.RawMessage)) error {
	c.mu.Lock()
	c.handlers[channel] = fn
	c.mu.Unlock()

	reply, err := c.request(ctx, Message{
		Channel:      ChannelSubscribe,
		ClientID:     c.ClientID(),
		Subscription: channel,
	})
	if err == nil && !reply.Successful {
		err = errors.Errorf("faye: subscribe %s refused: %s", channel, reply.Error)
	}
	if err != nil {
		c.mu.Lock()
		delete(c.handlers, channel)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Disconnect tells the server we are leaving and closes the socket. It is
// safe to call more than once.
func (c *Client) Disconnect() {
	select {
	case <-c.done:
		return
	default:
	}

	if id := c.ClientID(); id != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := c.request(ctx, Message{Channel: ChannelDisconnect, ClientID: id})
		cancel()
		if err != nil {
			c.log.Debug("faye disconnect", zap.Error(err))
		}
	}
	c.close()
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) connect() {
	c.mu.Lock()
	id := c.clientID
	c.mu.Unlock()
	if err := c.write(c.prepare(Message{
		Channel:        ChannelConnect,
		ClientID:       id,
		ConnectionType: "websocket",
	})); err != nil {
		c.log.Debug("faye connect", zap.Error(err))
	}
}

func (c *Client) prepare(m Message) Message {
	c.mu.Lock()
	c.nextID++
	m.ID = strconv.FormatInt(c.nextID, 10)
	c.mu.Unlock()

	for _, ext := range c.exts {
		ext.Outgoing(&m)
	}
	return m
}

func (c *Client) request(ctx context.Context, m Message) (Message, error) {
	m = c.prepare(m)

	ch := make(chan Message, 1)
	c.mu.Lock()
	c.pending[m.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, m.ID)
		c.mu.Unlock()
	}()

	if err := c.write(m); err != nil {
		return Message{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return Message{}, errors.Wrapf(ctx.Err(), "faye: %s", m.Channel)
	case <-c.done:
		return Message{}, ErrClosed
	}
}

func (c *Client) write(m Message) error {
	b, err := json.Marshal([]Message{m})
	if err != nil {
		return errors.Wrap(err, "faye: encode")
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) dispatch(m Message) {
	if m.Channel == ChannelConnect {
		if m.Successful {
			c.connect()
		} else if m.Advice == nil || m.Advice.Reconnect != "none" {
			c.log.Warn("faye connect rejected", zap.String("error", m.Error))
		}
	}

	if m.IsMeta() {
		c.mu.Lock()
		ch, ok := c.pending[m.ID]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- m:
			default:
			}
		}
		return
	}

	c.mu.Lock()
	fn := c.handlers[m.Channel]
	c.mu.Unlock()
	if fn != nil && len(m.Data) > 0 {
		fn(m.Data)
	}
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Debug("faye read", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		msgs, err := decodeFrame(frame)
		if err != nil {
			c.log.Warn("faye bad frame", zap.Error(err))
			continue
		}
		for _, m := range msgs {
			c.dispatch(m)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
