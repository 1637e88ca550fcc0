package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHubSubscribeAndBroadcast(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dialTestHub(t, srv)
	defer conn.Close()

	if err := conn.WriteJSON(ClientMsg{Type: "subscribe", MatchID: "m1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// a assinatura é assíncrona em relação ao dial; espera registrar
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.subs["m1"])
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(MatchUpdate{MatchID: "m1", Kind: "tick", Payload: json.RawMessage(`{"minute":12}`)})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got MatchUpdate
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if got.MatchID != "m1" || got.Kind != "tick" {
		t.Fatalf("broadcast = %+v", got)
	}
}

func TestHubBroadcastOnlyToSubscribers(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	subscribed := dialTestHub(t, srv)
	defer subscribed.Close()
	other := dialTestHub(t, srv)
	defer other.Close()

	if err := subscribed.WriteJSON(ClientMsg{Type: "subscribe", MatchID: "m1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := other.WriteJSON(ClientMsg{Type: "subscribe", MatchID: "m2"}); err != nil {
		t.Fatalf("subscribe other: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		ready := len(hub.subs["m1"]) == 1 && len(hub.subs["m2"]) == 1
		hub.mu.RUnlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriptions never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(MatchUpdate{MatchID: "m1", Kind: "odds"})

	subscribed.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got MatchUpdate
	if err := subscribed.ReadJSON(&got); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if err := other.ReadJSON(&got); err == nil {
		t.Fatalf("unsubscribed client received broadcast: %+v", got)
	}
}

func TestHubPing(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dialTestHub(t, srv)
	defer conn.Close()

	if err := conn.WriteJSON(ClientMsg{Type: "ping"}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong map[string]string
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong["type"] != "pong" {
		t.Fatalf("pong = %v", pong)
	}
}
