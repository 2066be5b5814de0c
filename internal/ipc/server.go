package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/austinkregel/local-media/previewd/internal/logging"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

const (
	// writeTimeout bounds every write to a client socket.
	writeTimeout = 2 * time.Second

	// clientQueueSize is how many outgoing lines a client may fall behind
	// before it is dropped.
	clientQueueSize = 64
)

// client is one connected socket. All writes go through its queue and are
// performed by writeLoop, so enqueuing never blocks the caller.
type client struct {
	id   string
	conn net.Conn

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// Guarded by Server.mu.
	visual  bool
	gain    bool
	limiter *rate.Limiter
}

func newClient(id string, conn net.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		out:  make(chan []byte, clientQueueSize),
		done: make(chan struct{}),
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case msg := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.conn.Write(msg); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue queues one line without blocking. It reports false when the client
// is gone or its queue is full.
func (c *client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

var errClientBehind = errors.New("client is not reading")

// Server handles IPC communication with clients. It is also the visual
// publisher that pushes snapshots to subscribed clients.
type Server struct {
	socketPath string
	handler    *Handler
	gainRate   rate.Limit
	logger     *log.Logger

	mu      sync.Mutex
	clients map[string]*client
}

// NewServer creates a new IPC server. gainPushRate caps gain pushes per
// second for each subscriber.
func NewServer(socketPath string, handler *Handler, gainPushRate float64, logger *log.Logger) *Server {
	if gainPushRate <= 0 {
		gainPushRate = 20
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		gainRate:   rate.Limit(gainPushRate),
		logger:     logging.Component(logger, "ipc"),
		clients:    make(map[string]*client),
	}
}

// Start creates the socket and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	s.logger.Info("creating socket", "path", s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set socket permissions (user-only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	err = s.Serve(ctx, listener)
	os.RemoveAll(s.socketPath)
	return err
}

// Serve accepts connections on listener until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go s.acceptLoop(ctx, listener)

	<-ctx.Done()

	s.logger.Info("shutting down server")

	s.mu.Lock()
	clientCount := len(s.clients)
	for _, c := range s.clients {
		c.close()
	}
	s.mu.Unlock()

	listener.Close()
	s.logger.Info("server stopped", "closed", clientCount)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.logger.Error("accept failed", "err", err)
			return
		}

		c := newClient(uuid.NewString(), conn)

		s.mu.Lock()
		s.clients[c.id] = c
		clientCount := len(s.clients)
		s.mu.Unlock()

		s.logger.Debug("client connected", "client", c.id, "active", clientCount)

		go s.handleConnection(ctx, c)
	}
}

func (s *Server) handleConnection(ctx context.Context, c *client) {
	go c.writeLoop()
	defer func() {
		c.close()
		s.mu.Lock()
		delete(s.clients, c.id)
		clientCount := len(s.clients)
		s.mu.Unlock()
		s.logger.Debug("client disconnected", "client", c.id, "active", clientCount)
	}()

	reader := bufio.NewReader(c.conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Read line (newline-delimited JSON)
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("read failed", "client", c.id, "err", err)
			}
			return
		}

		req, err := DecodeRequest(line)
		if err != nil {
			s.logger.Debug("invalid request", "client", c.id, "err", err)
			if err := s.sendResponse(c, NewErrorResponse("invalid request format")); err != nil {
				s.logger.Debug("send failed", "client", c.id, "err", err)
				return
			}
			continue
		}

		// Status is polled by clients; keep it out of the debug stream.
		if req.Cmd != CmdStatus {
			s.logger.Debug("command", "client", c.id, "cmd", req.Cmd)
		}

		var resp *Response
		switch req.Cmd {
		case CmdSubscribe:
			resp = s.subscribe(c, req)
		case CmdUnsubscribe:
			resp = s.unsubscribe(c)
		default:
			resp = s.handler.Handle(ctx, req)
		}

		if !resp.Success {
			s.logger.Debug("command failed", "client", c.id, "cmd", req.Cmd, "error", resp.Error)
		}

		if err := s.sendResponse(c, resp); err != nil {
			s.logger.Debug("send failed", "client", c.id, "err", err)
			return
		}

		if req.Cmd == CmdSubscribe && resp.Success {
			s.pushCurrent(ctx, c)
		}
	}
}

func (s *Server) sendResponse(c *client, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	if !c.enqueue(append(data, '\n')) {
		c.close()
		return errClientBehind
	}
	return nil
}

func (s *Server) subscribe(c *client, req *Request) *Response {
	var sub SubscribeRequest
	if len(req.Data) > 0 {
		if err := decode(req, &sub); err != nil {
			return NewErrorResponse(err.Error())
		}
	}

	s.mu.Lock()
	c.visual = true
	c.gain = sub.Gain
	if sub.Gain && c.limiter == nil {
		c.limiter = rate.NewLimiter(s.gainRate, 1)
	}
	s.mu.Unlock()

	s.logger.Debug("client subscribed", "client", c.id, "gain", sub.Gain)

	resp, _ := NewSuccessResponse(map[string]interface{}{"id": c.id, "subscribed": true})
	return resp
}

func (s *Server) unsubscribe(c *client) *Response {
	s.mu.Lock()
	c.visual = false
	c.gain = false
	s.mu.Unlock()

	resp, _ := NewSuccessResponse(map[string]bool{"subscribed": false})
	return resp
}

// pushCurrent sends a fresh subscriber the board as it is now.
func (s *Server) pushCurrent(ctx context.Context, c *client) {
	var snap visual.Snapshot
	if err := s.handler.Loop.Do(ctx, func() { snap = s.handler.Board.Snapshot() }); err != nil {
		return
	}
	msg, err := NewPushMessage(PushVisual, snap)
	if err != nil {
		return
	}
	s.deliver(c, append(msg, '\n'))
}

// subscribers returns the clients selected by want.
func (s *Server) subscribers(want func(*client) bool) []*client {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*client
	for _, c := range s.clients {
		if want(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) push(subs []*client, msgType string, data interface{}) {
	if len(subs) == 0 {
		return
	}
	msg, err := NewPushMessage(msgType, data)
	if err != nil {
		s.logger.Error("failed to encode push", "type", msgType, "err", err)
		return
	}
	msg = append(msg, '\n')
	for _, c := range subs {
		s.deliver(c, msg)
	}
}

// deliver queues a push, dropping a client that cannot keep up.
func (s *Server) deliver(c *client, msg []byte) {
	if !c.enqueue(msg) {
		s.logger.Debug("client not keeping up, dropping", "client", c.id)
		c.close()
	}
}

// PublishVisual implements visual.Publisher.
func (s *Server) PublishVisual(snap visual.Snapshot) {
	s.push(s.subscribers(func(c *client) bool { return c.visual }), PushVisual, snap)
}

// PublishGain implements visual.Publisher. Pushes are throttled per client;
// silence is always delivered so a finished fade-out is never lost.
func (s *Server) PublishGain(gain float64) {
	subs := s.subscribers(func(c *client) bool {
		return c.gain && (gain <= 0 || c.limiter.Allow())
	})
	s.push(subs, PushGain, GainPush{Gain: gain})
}

var _ visual.Publisher = (*Server)(nil)
