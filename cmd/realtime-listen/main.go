// Command realtime-listen prints the live attendance feed of a running gateway.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	gatewayws "github.com/kuilinga/terminal-gateway/internal/websocket"
)

func main() {
	host := flag.String("host", "localhost:8080", "gateway host:port")
	secure := flag.Bool("tls", false, "use wss instead of ws")
	flag.Parse()

	scheme := "ws"
	if *secure {
		scheme = "wss"
	}
	wsURL := url.URL{Scheme: scheme, Host: *host, Path: "/ws/attendance/realtime"}

	fmt.Printf("Connecting to: %s\n", wsURL.String())

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("WebSocket connection failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read failed: %v", err)
				}
				return
			}
			printFrame(message)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func printFrame(message []byte) {
	msgType, payload, err := gatewayws.ParseEnvelope(message)
	if err != nil {
		fmt.Printf("? %s\n", string(message))
		return
	}

	switch msgType {
	case gatewayws.MessageTypeConnected:
		fmt.Println("✓ Subscribed to live attendance")
	case gatewayws.MessageTypeNewAttendance:
		var event entities.AttendanceEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			fmt.Printf("? %s\n", string(payload))
			return
		}
		serial := "-"
		if event.DeviceSerial != nil {
			serial = *event.DeviceSerial
		}
		fmt.Printf("%s  %-3s  %-24s  terminal %s\n",
			event.Timestamp.Local().Format(time.DateTime), event.Type, event.EmployeeName, serial)
	default:
		fmt.Printf("%s: %s\n", msgType, string(payload))
	}
}
