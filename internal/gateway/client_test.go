package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHandleFrame_RoutesInteraction(t *testing.T) {
	c := NewClient("ws://unused", "http://unused", "tok")

	got := make(chan Interaction, 1)
	c.OnInteraction(func(_ context.Context, in Interaction) {
		got <- in
	})

	frame := []byte(`{"type":"interaction_create","data":{"id":"i1","command":"ask","arg":"hi","channel_name":"help","user_id":"u1"}}`)
	c.handleFrame(context.Background(), frame)

	select {
	case in := <-got:
		if in.ID != "i1" || in.Command != "ask" || in.Arg != "hi" {
			t.Errorf("interaction = %+v", in)
		}
	case <-time.After(time.Second):
		t.Fatal("interaction handler never called")
	}
}

func TestHandleFrame_RoutesMessage(t *testing.T) {
	c := NewClient("ws://unused", "http://unused", "tok")

	got := make(chan Message, 1)
	c.OnMessage(func(_ context.Context, m Message) {
		got <- m
	})

	frame := []byte(`{"type":"message_create","data":{"id":"m1","content":"hello","dm":true}}`)
	c.handleFrame(context.Background(), frame)

	select {
	case m := <-got:
		if m.ID != "m1" || !m.DM {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("message handler never called")
	}
}

func TestHandleFrame_IgnoresMalformedAndUnknown(t *testing.T) {
	c := NewClient("ws://unused", "http://unused", "tok")
	c.OnInteraction(func(_ context.Context, _ Interaction) {
		t.Error("handler called for bad frame")
	})

	c.handleFrame(context.Background(), []byte(`{not json`))
	c.handleFrame(context.Background(), []byte(`{"type":"presence_update","data":{}}`))
	c.handleFrame(context.Background(), []byte(`{"type":"interaction_create","data":"not an object"}`))
	time.Sleep(50 * time.Millisecond)
}

func TestRun_ConsumesEventsOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		frame := `{"type":"interaction_create","data":{"id":"i1","command":"ask"}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Errorf("write: %v", err)
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewClient(wsURL, srv.URL, "tok")

	received := make(chan Interaction, 1)
	c.OnInteraction(func(_ context.Context, in Interaction) {
		received <- in
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case in := <-received:
		if in.ID != "i1" {
			t.Errorf("interaction = %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no interaction received over websocket")
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestReadLoop_NoGoroutineLeakAcrossConnections(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewClient(wsURL, srv.URL, "tok")
	ctx := context.Background()

	before := runtime.NumGoroutine()
	const cycles = 25
	for i := 0; i < cycles; i++ {
		if _, err := c.readLoop(ctx); err == nil {
			t.Fatal("readLoop returned nil error on a dropped connection")
		}
	}

	// Give connection watchers a moment to unwind before counting.
	var after int
	for i := 0; i < 50; i++ {
		after = runtime.NumGoroutine()
		if after <= before+2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("goroutines before = %d, after %d connection cycles = %d", before, cycles, after)
}

func TestReadLoop_ReportsWhetherDialSucceeded(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := NewClient(wsURL, srv.URL, "tok")
	connected, err := c.readLoop(context.Background())
	if !connected {
		t.Error("connected = false after a successful dial")
	}
	if err == nil {
		t.Error("err = nil after the server dropped the connection")
	}

	srv.Close()
	connected, err = c.readLoop(context.Background())
	if connected {
		t.Error("connected = true after a failed dial")
	}
	if err == nil {
		t.Error("err = nil after a failed dial")
	}
}

func TestSendChannelMessage(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("ws://unused", srv.URL, "tok")
	if err := c.SendChannelMessage(context.Background(), "ch-1", "hello"); err != nil {
		t.Fatalf("SendChannelMessage: %v", err)
	}
	if gotPath != "/channels/ch-1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["content"] != "hello" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestRespondEphemeral(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("ws://unused", srv.URL, "tok")
	if err := c.RespondEphemeral(context.Background(), "i1", "denied"); err != nil {
		t.Fatalf("RespondEphemeral: %v", err)
	}
	if gotBody["ephemeral"] != true || gotBody["content"] != "denied" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestSend_FailureWrapsErrDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cannot send to this user", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("ws://unused", srv.URL, "tok")
	err := c.SendDirectMessage(context.Background(), "u1", "hi")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("error = %v, want ErrDelivery", err)
	}
}

func TestRecentMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		json.NewEncoder(w).Encode([]Message{
			{ID: "m2", Content: "newest"},
			{ID: "m1", Content: "older"},
		})
	}))
	defer srv.Close()

	c := NewClient("ws://unused", srv.URL, "tok")
	msgs, err := c.RecentMessages(context.Background(), "ch-1", 50)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m2" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestDownloadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer srv.Close()

	c := NewClient("ws://unused", "http://unused", "tok")
	data, err := c.DownloadAttachment(context.Background(), srv.URL+"/file.png")
	if err != nil {
		t.Fatalf("DownloadAttachment: %v", err)
	}
	if len(data) != 4 || data[0] != 0x89 {
		t.Errorf("data = %v", data)
	}
}
