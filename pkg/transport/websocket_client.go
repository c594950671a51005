package transport

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sessamekesh/duckpond-client/pkg/errors"
	utils "github.com/sessamekesh/duckpond-client/pkg/util"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Conn is a message-oriented, non-blocking connection to the game server.
//
// TryRead returns the next whole text frame, or errors.ErrWouldBlock if none
// has arrived yet. TryWrite enqueues one whole frame, or returns
// errors.ErrWouldBlock if the outbound buffer is full (the frame is dropped).
// Neither call ever waits on the network.
type Conn interface {
	TryRead() ([]byte, error)
	TryWrite(frame []byte) error
	Close() error
}

// HandshakeResponse is the metadata from the server's HTTP upgrade response.
// It is retained for diagnostics only.
type HandshakeResponse struct {
	StatusCode  int
	Header      http.Header
	Subprotocol string
}

type WebsocketDialParams struct {
	Url              string
	HandshakeTimeout time.Duration
	Header           http.Header

	ReadBufferFrames  int
	WriteBufferFrames int
	WriteTimeout      time.Duration

	MaxReadMessageSize int64

	Logger *zap.Logger
}

type WebsocketConn struct {
	conn     *websocket.Conn
	response HandshakeResponse
	params   WebsocketDialParams

	incoming chan []byte
	outgoing chan []byte
	done     chan struct{}

	readErr  atomic.Error
	writeErr atomic.Error
	closed   atomic.Bool

	closeOnce sync.Once
	wg        sync.WaitGroup

	log *zap.Logger
}

var connIdGen = utils.CreateRandomStringGenerator(time.Now().UnixMicro())

var expectedCloseErrors = []int{websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived}

func applyDialDefaults(params WebsocketDialParams) WebsocketDialParams {
	if params.Logger == nil {
		params.Logger = zap.Must(zap.NewDevelopment())
	}
	if params.HandshakeTimeout <= 0 {
		params.HandshakeTimeout = 10 * time.Second
	}
	if params.ReadBufferFrames <= 0 {
		params.ReadBufferFrames = 256
	}
	if params.WriteBufferFrames <= 0 {
		params.WriteBufferFrames = 64
	}
	if params.WriteTimeout <= 0 {
		params.WriteTimeout = 5 * time.Second
	}
	return params
}

// DialWebsocket performs the client handshake and, on success, starts the
// reader and writer goroutines that back TryRead and TryWrite. The handshake
// is blocking; run it off the tick (see Bootstrap).
func DialWebsocket(ctx context.Context, params WebsocketDialParams) (*WebsocketConn, error) {
	params = applyDialDefaults(params)

	log := params.Logger.With(
		zap.String("handler", "WebSocket"),
		zap.String("wsConnId", connIdGen.GetRandomString(6)),
	)

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: params.HandshakeTimeout,
	}

	log.Info("Dialing game server", zap.String("url", params.Url))
	c, resp, err := dialer.DialContext(ctx, params.Url, params.Header)
	if err != nil {
		handshakeErr := &errors.HandshakeFailed{
			Url:    params.Url,
			Reason: err,
		}
		if resp != nil {
			handshakeErr.StatusCode = resp.StatusCode
		}
		return nil, handshakeErr
	}

	if params.MaxReadMessageSize > 0 {
		c.SetReadLimit(params.MaxReadMessageSize)
	}

	ws := &WebsocketConn{
		conn: c,
		response: HandshakeResponse{
			StatusCode:  resp.StatusCode,
			Header:      resp.Header,
			Subprotocol: c.Subprotocol(),
		},
		params:   params,
		incoming: make(chan []byte, params.ReadBufferFrames),
		outgoing: make(chan []byte, params.WriteBufferFrames),
		done:     make(chan struct{}),
		log:      log,
	}

	log.Info("WebSocket handshake complete", zap.Int("status", resp.StatusCode))

	ws.wg.Add(2)
	go ws.readLoop()
	go ws.writeLoop()

	return ws, nil
}

func (ws *WebsocketConn) Response() HandshakeResponse {
	return ws.response
}

func (ws *WebsocketConn) readLoop() {
	defer ws.wg.Done()
	defer close(ws.incoming)

	for {
		msgType, payload, msgErr := ws.conn.ReadMessage()
		if msgErr != nil {
			ws.readErr.Store(msgErr)
			ws.logReadError(msgErr)
			return
		}

		if msgType != websocket.TextMessage {
			ws.log.Info("Received non-text message, ignoring", zap.Int("size", len(payload)))
			continue
		}

		select {
		case ws.incoming <- payload:
		case <-ws.done:
			return
		}
	}
}

func (ws *WebsocketConn) logReadError(msgErr error) {
	if websocket.IsCloseError(msgErr, expectedCloseErrors...) {
		closeError, ok := msgErr.(*websocket.CloseError)
		if ok {
			ws.log.Info("Server closed connection", zap.Int("closeCode", closeError.Code), zap.String("closeMsg", closeError.Text))
		} else {
			ws.log.Info("Server closed connection")
		}
		return
	}

	if websocket.IsUnexpectedCloseError(msgErr, expectedCloseErrors...) {
		ws.log.Warn("Unexpected close from server", zap.Error(msgErr))
		return
	}

	if ws.closed.Load() || strings.Contains(msgErr.Error(), "use of closed network connection") {
		ws.log.Info("Read loop stopped after local close")
		return
	}

	ws.log.Error("Unexpected WebSocket error on message read", zap.Error(msgErr))
}

func (ws *WebsocketConn) writeLoop() {
	defer ws.wg.Done()

	for {
		select {
		case <-ws.done:
			return
		case frame := <-ws.outgoing:
			if err := ws.conn.SetWriteDeadline(time.Now().Add(ws.params.WriteTimeout)); err != nil {
				ws.writeErr.Store(err)
				ws.log.Error("Failed to set write deadline", zap.Error(err))
				return
			}
			if err := ws.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				ws.writeErr.Store(err)
				ws.log.Error("Failed to write frame", zap.Int("size", len(frame)), zap.Error(err))
				return
			}
		}
	}
}

// TryRead returns buffered frames in arrival order. Once the socket has failed,
// the remaining buffered frames are still returned, then the read error.
func (ws *WebsocketConn) TryRead() ([]byte, error) {
	if ws.closed.Load() {
		return nil, errors.ErrConnectionClosed
	}

	select {
	case frame, ok := <-ws.incoming:
		if !ok {
			if err := ws.readErr.Load(); err != nil {
				return nil, err
			}
			return nil, errors.ErrConnectionClosed
		}
		return frame, nil
	default:
		return nil, errors.ErrWouldBlock
	}
}

// TryWrite enqueues the frame for the writer goroutine. Delivery is at most
// once: a full buffer drops the frame and reports ErrWouldBlock.
func (ws *WebsocketConn) TryWrite(frame []byte) error {
	if ws.closed.Load() {
		return errors.ErrConnectionClosed
	}
	if err := ws.writeErr.Load(); err != nil {
		return err
	}

	select {
	case ws.outgoing <- frame:
		return nil
	default:
		return errors.ErrWouldBlock
	}
}

// Close sends a close frame, tears down the socket and waits for both
// goroutines. Safe to call more than once.
func (ws *WebsocketConn) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		ws.closed.Store(true)
		close(ws.done)

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if writeErr := ws.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); writeErr != nil {
			ws.log.Debug("Failed to send close frame", zap.Error(writeErr))
		}

		err = ws.conn.Close()
		ws.wg.Wait()
		ws.log.Info("WebSocket connection closed")
	})
	return err
}
