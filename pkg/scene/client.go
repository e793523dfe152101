package scene

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/protocol"
)

// DefaultRequestTimeout bounds each command when ctx has no deadline.
const DefaultRequestTimeout = 5 * time.Second

// Client is a Controller talking to a scene server over WebSocket.
// Requests carry a uuid and are matched to world.ack replies by id.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *protocol.Message
	closed  bool
	done    chan struct{}
}

// Dial connects to a scene server.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("scene connect failed: %w", err)
	}

	c := &Client{
		conn:    conn,
		logger:  log.With("component", "scene", "url", url),
		pending: make(map[string]chan *protocol.Message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.failPending()
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.logger.Warn("bad scene message", "error", err)
			continue
		}
		if msg.Type != protocol.TypeSceneReply {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// failPending marks the client closed and releases every waiter.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// request sends msg and waits for the matching reply.
func (c *Client) request(ctx context.Context, msg *protocol.Message) (*protocol.ReplyData, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}

	ch := make(chan *protocol.Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[msg.ID] = ch
	c.mu.Unlock()

	data, err := msg.Bytes()
	if err == nil {
		c.writeMu.Lock()
		err = c.conn.WriteMessage(websocket.TextMessage, data)
		c.writeMu.Unlock()
	}
	if err != nil {
		c.forget(msg.ID)
		return nil, fmt.Errorf("scene %s: %w", msg.Type, err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		r, err := reply.GetReplyData()
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", msg.Type, err)
		}
		if !r.OK {
			return r, fmt.Errorf("%w: %s: %s", ErrRejected, msg.Type, r.Error)
		}
		return r, nil
	case <-ctx.Done():
		c.forget(msg.ID)
		return nil, fmt.Errorf("scene %s: %w", msg.Type, ctx.Err())
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// DeleteAll removes every object from the scene.
func (c *Client) DeleteAll(ctx context.Context) error {
	msg, err := protocol.NewDeleteAllMessage(uuid.NewString())
	if err != nil {
		return err
	}
	_, err = c.request(ctx, msg)
	return err
}

// CreateSphere creates a static sphere and returns its id.
func (c *Client) CreateSphere(ctx context.Context, s SphereSpec) (int, error) {
	msg, err := protocol.NewCreateSphereMessage(uuid.NewString(), s.Radius, s.Pos, s.Color)
	if err != nil {
		return 0, err
	}
	r, err := c.request(ctx, msg)
	if err != nil {
		return 0, err
	}
	return r.ObjectID, nil
}

// MoveSphere moves sphere id to pos.
func (c *Client) MoveSphere(ctx context.Context, id int, pos Vec3) error {
	msg, err := protocol.NewMoveSphereMessage(uuid.NewString(), id, pos)
	if err != nil {
		return err
	}
	_, err = c.request(ctx, msg)
	return err
}

// Close closes the connection and fails outstanding requests.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}
