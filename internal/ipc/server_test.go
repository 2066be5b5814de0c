package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/austinkregel/local-media/previewd/internal/eventloop"
	"github.com/austinkregel/local-media/previewd/internal/hover"
	"github.com/austinkregel/local-media/previewd/internal/logging"
	"github.com/austinkregel/local-media/previewd/internal/prefs"
	"github.com/austinkregel/local-media/previewd/internal/session"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	loop := eventloop.New()
	go loop.Run(ctx)

	board := visual.NewBoard(nil)
	store := prefs.NewStore(filepath.Join(t.TempDir(), "prefs.json"), prefs.DefaultVolume)
	sync := visual.NewSync(visual.Options{})
	sess := session.New(&fakeResource{post: loop, paused: true}, loop, store, sync, board, session.DefaultOptions(), logging.Discard())
	router := hover.New(sess, loop, board, hover.Options{}, logging.Discard())

	h := NewHandler(Deps{Loop: loop, Session: sess, Router: router, Board: board, Sync: sync, Prefs: store}, logging.Discard())
	srv := NewServer("", h, 20, logging.Discard())
	if err := loop.Do(ctx, func() { board.SetPublisher(srv) }); err != nil {
		t.Fatalf("Failed to wire publisher: %v", err)
	}

	path := filepath.Join(t.TempDir(), "p.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go srv.Serve(ctx, ln)
	return path
}

type rawConn struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialRaw(t *testing.T, path string) *rawConn {
	t.Helper()
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return &rawConn{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *rawConn) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("Failed to write: %v", err)
	}
}

func (c *rawConn) next() map[string]json.RawMessage {
	c.t.Helper()
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.t.Fatalf("Failed to read: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(line, &m); err != nil {
		c.t.Fatalf("Invalid line %q: %v", line, err)
	}
	return m
}

func TestServerRejectsMalformedLine(t *testing.T) {
	c := dialRaw(t, startTestServer(t))

	c.send(`{not json`)
	m := c.next()
	if string(m["success"]) != "false" {
		t.Errorf("Expected failure response, got %v", m)
	}

	// The connection stays usable.
	c.send(`{"cmd":"status"}`)
	m = c.next()
	if string(m["success"]) != "true" {
		t.Errorf("Expected status to succeed, got %v", m)
	}
}

func TestServerPushesVisualToSubscribers(t *testing.T) {
	c := dialRaw(t, startTestServer(t))

	c.send(`{"cmd":"subscribe"}`)
	if m := c.next(); string(m["success"]) != "true" {
		t.Fatalf("Expected subscribe to succeed, got %v", m)
	}
	if m := c.next(); string(m["type"]) != `"visual"` {
		t.Fatalf("Expected current snapshot push, got %v", m)
	}

	c.send(`{"cmd":"gesture","data":{"kind":"pointerdown"}}`)
	c.send(`{"cmd":"enter","data":{"group":{"id":"alb-1","title":"First Light","tracks":[{"title":"Intro","bpm":150,"preview_url":"https://cdn.example.com/p/intro.mp3"}]}}}`)

	for {
		m := c.next()
		if string(m["type"]) != `"visual"` {
			continue
		}
		var snap visual.Snapshot
		if err := json.Unmarshal(m["data"], &snap); err != nil {
			t.Fatalf("Invalid snapshot: %v", err)
		}
		if !snap.NowPlayingVisible {
			continue
		}
		if snap.NowPlaying != "Intro — First Light" {
			t.Errorf("Expected now playing text, got %q", snap.NowPlaying)
		}
		if card := snap.Cards["alb-1"]; !card.Pulsing || card.PulsePeriod != 0.4 {
			t.Errorf("Expected alb-1 pulsing at 0.4s, got %+v", card)
		}
		return
	}
}

func TestServerGainPushesAreThrottled(t *testing.T) {
	srv := NewServer("", nil, 1, logging.Discard())
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	c := newClient("c1", serverSide)
	c.gain = true
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	srv.clients[c.id] = c
	go c.writeLoop()
	defer c.close()

	srv.PublishGain(0.5)
	srv.PublishGain(0.4)
	srv.PublishGain(0)

	clientSide.SetReadDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(clientSide)
	want := []string{
		`{"type":"gain","data":{"gain":0.5}}` + "\n",
		`{"type":"gain","data":{"gain":0}}` + "\n",
	}
	for i := range want {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("Failed to read push %d: %v", i, err)
		}
		if line != want[i] {
			t.Errorf("Push %d: expected %q, got %q", i, want[i], line)
		}
	}
	if n := len(c.out); n != 0 {
		t.Errorf("Expected the throttled push to be skipped, %d still queued", n)
	}
}

func TestServerSkipsUnsubscribedClients(t *testing.T) {
	srv := NewServer("", nil, 20, logging.Discard())
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	c := newClient("c1", serverSide)
	srv.clients[c.id] = c

	srv.PublishVisual(visual.Snapshot{})
	srv.PublishGain(0.5)
	if n := len(c.out); n != 0 {
		t.Errorf("Expected nothing queued for an unsubscribed client, got %d", n)
	}
}

func TestServerStalledClientDoesNotBlockPublishers(t *testing.T) {
	srv := NewServer("", nil, 20, logging.Discard())
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	// The peer never reads, so the first write blocks in writeLoop.
	c := newClient("c1", serverSide)
	c.visual = true
	srv.clients[c.id] = c
	go c.writeLoop()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		srv.sendResponse(c, NewErrorResponse("pending"))
		for i := 0; i < clientQueueSize*2; i++ {
			srv.PublishVisual(visual.Snapshot{NowPlaying: "Intro"})
		}
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Expected publishing to a stalled client to return immediately")
	}

	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Error("Expected the stalled client to be dropped once its queue filled")
	}
	if err := srv.sendResponse(c, NewErrorResponse("late")); err == nil {
		t.Error("Expected responses to a dropped client to fail")
	}
}

func TestClientCallSkipsPushes(t *testing.T) {
	path := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, path)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	resp, err := c.Call(ctx, CmdSubscribe, nil)
	if err != nil || !resp.Success {
		t.Fatalf("Expected subscribe to succeed, got %+v, %v", resp, err)
	}

	// The snapshot pushed after subscribing is skipped.
	resp, err = c.Call(ctx, CmdStatus, nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	var status StatusResponse
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}
	if status.Unlocked {
		t.Error("Expected a fresh daemon to be locked")
	}
}
