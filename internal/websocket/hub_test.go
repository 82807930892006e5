package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/domain/entities"
)

func setupTestHub(t testing.TB) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func testEvent(name string) *entities.AttendanceEvent {
	serial := "SN-1"
	return &entities.AttendanceEvent{
		AttendanceRecord: entities.AttendanceRecord{
			ID:         "att-1",
			Timestamp:  time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
			Type:       entities.AttendanceTypeIn,
			EmployeeID: "emp-1",
		},
		EmployeeName:   name,
		OrganizationID: "org-1",
		DeviceSerial:   &serial,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func dialSubscriber(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	e := echo.New()
	e.GET("/ws/attendance/realtime", hub.ServeSubscriber)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/attendance/realtime"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket connection failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read greeting: %v", err)
	}
	if typ, _, err := ParseEnvelope(data); err != nil || typ != MessageTypeConnected {
		t.Fatalf("Expected connected greeting, got %s (%v)", data, err)
	}
	return ws
}

func TestHub_BroadcastReachesSubscribers(t *testing.T) {
	hub, _ := setupTestHub(t)

	first := dialSubscriber(t, hub)
	second := dialSubscriber(t, hub)
	waitFor(t, "two subscribers", func() bool { return hub.SubscriberCount() == 2 })

	if err := hub.Broadcast(context.Background(), testEvent("Jean Kouassi")); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	for i, ws := range []*websocket.Conn{first, second} {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("Subscriber %d: read failed: %v", i, err)
		}

		var frame struct {
			Type    MessageType              `json:"type"`
			Payload entities.AttendanceEvent `json:"payload"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("Subscriber %d: invalid frame: %v", i, err)
		}
		if frame.Type != MessageTypeNewAttendance {
			t.Errorf("Subscriber %d: expected new_attendance, got %s", i, frame.Type)
		}
		if frame.Payload.EmployeeName != "Jean Kouassi" || frame.Payload.ID != "att-1" {
			t.Errorf("Subscriber %d: unexpected payload %+v", i, frame.Payload)
		}
	}
}

func TestHub_SubscriberDisconnectUnregisters(t *testing.T) {
	hub, _ := setupTestHub(t)

	ws := dialSubscriber(t, hub)
	waitFor(t, "subscriber", func() bool { return hub.SubscriberCount() == 1 })

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()
	waitFor(t, "unregister", func() bool { return hub.SubscriberCount() == 0 })

	if err := hub.Broadcast(context.Background(), testEvent("Awa Traore")); err != nil {
		t.Errorf("Broadcast without subscribers should succeed, got %v", err)
	}
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	hub, _ := setupTestHub(t)

	slow := &Client{hub: hub, send: make(chan []byte, 1), id: "slow", logger: zap.NewNop()}
	fast := &Client{hub: hub, send: make(chan []byte, 8), id: "fast", logger: zap.NewNop()}
	hub.register <- slow
	hub.register <- fast

	for i := 0; i < 3; i++ {
		if err := hub.Broadcast(context.Background(), testEvent("Koffi Yao")); err != nil {
			t.Fatalf("Broadcast failed: %v", err)
		}
	}
	waitFor(t, "slow subscriber drop", func() bool { return hub.SubscriberCount() == 1 })

	received := 0
	for range slow.send {
		received++
	}
	if received != 1 {
		t.Errorf("Slow subscriber should have kept exactly its buffered frame, got %d", received)
	}
	if len(fast.send) != 3 {
		t.Errorf("Fast subscriber should have all 3 frames, got %d", len(fast.send))
	}
}

func TestHub_BroadcastAfterShutdown(t *testing.T) {
	hub, cancel := setupTestHub(t)

	client := &Client{hub: hub, send: make(chan []byte, 1), id: "c1", logger: zap.NewNop()}
	hub.register <- client

	cancel()
	<-hub.done

	if _, ok := <-client.send; ok {
		t.Error("Expected subscriber channel to be closed on shutdown")
	}
	if err := hub.Broadcast(context.Background(), testEvent("Jean Kouassi")); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Expected ErrHubClosed, got %v", err)
	}
}

func TestHub_BroadcastHonorsContext(t *testing.T) {
	// no Run loop: nobody takes the frame
	hub := NewHub(nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := hub.Broadcast(ctx, testEvent("Jean Kouassi")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if err := hub.Broadcast(context.Background(), nil); err == nil {
		t.Error("Expected error for nil event")
	}
}
