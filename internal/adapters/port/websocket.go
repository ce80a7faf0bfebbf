package port

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPingInterval   = 30 * time.Second
	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256
	closeGracePeriod      = time.Second
)

// WSPort is a Port over one websocket connection. Outbound messages go
// through a bounded buffer drained by a write pump; inbound submit_score
// messages are decoded by a read pump.
type WSPort struct {
	conn        *websocket.Conn
	send        chan []byte
	submissions chan model.Submission
	done        chan struct{}
	closeOnce   sync.Once

	writeWait      time.Duration
	pingInterval   time.Duration
	maxMessageSize int64
	sendBuffer     int

	logger logger.Logger
}

// NewWSPort wraps an upgraded connection. Call Start to run the pumps.
func NewWSPort(conn *websocket.Conn, opts ...WSOption) *WSPort {
	p := &WSPort{
		conn:           conn,
		writeWait:      defaultWriteWait,
		pingInterval:   defaultPingInterval,
		maxMessageSize: defaultMaxMessageSize,
		sendBuffer:     defaultSendBuffer,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("ws-port")
	}
	p.send = make(chan []byte, p.sendBuffer)
	p.submissions = make(chan model.Submission, p.sendBuffer)
	return p
}

// Start runs the read and write pumps until the connection ends or ctx is
// cancelled.
func (p *WSPort) Start(ctx context.Context) {
	go p.writePump(ctx)
	go p.readPump(ctx)
	go func() {
		select {
		case <-ctx.Done():
			_ = p.Close()
		case <-p.done:
		}
	}()
}

// Done is closed once the connection has ended.
func (p *WSPort) Done() <-chan struct{} { return p.done }

// Submissions implements Port. The channel closes when the read side ends.
func (p *WSPort) Submissions() <-chan model.Submission { return p.submissions }

// Send implements Port. A full send buffer means the client is not keeping
// up; the connection is closed rather than stalling the bridge.
func (p *WSPort) Send(ctx context.Context, msg model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.send <- data:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.Warn(ctx, "send buffer full, closing connection", logger.Int("buffer", p.sendBuffer))
		_ = p.Close()
		return ErrSendBufferFull
	}
}

// Close ends the connection with a normal closure. It is safe to call more
// than once.
func (p *WSPort) Close() error {
	return p.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode ends the connection, telling the peer code and reason. Only
// the first close reaches the peer.
func (p *WSPort) CloseWithCode(code int, reason string) error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(closeGracePeriod))
		err = p.conn.Close()
	})
	return err
}

func (p *WSPort) readPump(ctx context.Context) {
	defer func() {
		close(p.submissions)
		_ = p.Close()
	}()

	pongWait := p.pingInterval * 2
	p.conn.SetReadLimit(p.maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Warn(ctx, "websocket read failed", logger.Error(err))
			}
			return
		}

		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Warn(ctx, "ignoring undecodable message", logger.Error(err))
			continue
		}
		if msg.Type != model.MessageSubmitScore {
			p.logger.Warn(ctx, "ignoring unexpected message", logger.String("type", string(msg.Type)))
			continue
		}

		select {
		case p.submissions <- msg.Entry:
		case <-p.done:
			return
		}
	}
}

func (p *WSPort) writePump(ctx context.Context) {
	ticker := time.NewTicker(p.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					p.logger.Warn(ctx, "websocket write failed", logger.Error(err))
				}
				_ = p.Close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.logger.Debug(ctx, "ping failed", logger.Error(err))
				_ = p.Close()
				return
			}
		}
	}
}
