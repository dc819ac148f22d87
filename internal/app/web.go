package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/ficrammanifur/smart-robotic-arm/internal/config"
	"github.com/ficrammanifur/smart-robotic-arm/internal/control"
	"github.com/ficrammanifur/smart-robotic-arm/internal/oplog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// controlRequest is the dashboard's JSON control payload, translated into
// the controller's command grammar before publishing.
type controlRequest struct {
	Command string `json:"command"`
	Mode    string `json:"mode"`
	ServoID int    `json:"servo_id"`
	Angle   int    `json:"angle"`
	Speed   int    `json:"speed"`
}

func (r controlRequest) grammar() (string, error) {
	switch r.Command {
	case "set_mode":
		mode := strings.ToUpper(r.Mode)
		if mode != "AUTO" && mode != "MANUAL" {
			return "", fmt.Errorf("unknown mode %q", r.Mode)
		}
		return "MODE " + mode, nil
	case "manual_servo":
		return fmt.Sprintf("SERVO %d %d", r.ServoID, r.Angle), nil
	case "manual_motor":
		return fmt.Sprintf("MOTOR %d", r.Speed), nil
	case "emergency_stop":
		return "STOP", nil
	case "home_position":
		return "HOME", nil
	}
	return "", fmt.Errorf("unknown command %q", r.Command)
}

// RunWeb serves the dashboard backend: it mirrors the latest status from
// MQTT, pushes each update to websocket clients, and translates REST
// control calls into commands on the control topic.
func RunWeb() error {
	cfg := config.Get()

	var (
		mu         sync.RWMutex
		lastStatus control.Status
		haveStatus bool
	)

	var (
		clientsMu sync.Mutex
		clients   = make(map[*websocket.Conn]bool)
	)

	// 1) Connect to MQTT broker on the Pi
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Mirror the status topic and fan updates out to websockets
	token := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s control.Status
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: status unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastStatus = s
		haveStatus = true
		mu.Unlock()

		clientsMu.Lock()
		for c := range clients {
			if err := c.WriteJSON(s); err != nil {
				c.Close()
				delete(clients, c)
			}
		}
		clientsMu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicStatus)

	var logger *oplog.Logger
	if cfg.OplogPath != "" {
		var err error
		if logger, err = oplog.New(cfg.OplogPath); err != nil {
			log.Printf("web: statistics disabled: %v", err)
			logger = nil
		}
	}

	// 3) JSON API endpoints
	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveStatus {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastStatus); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/control", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}

		var req controlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}

		cmd, err := req.grammar()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if tk := client.Publish(cfg.TopicControl, 0, false, cmd); tk.Wait() && tk.Error() != nil {
			log.Printf("web: control publish error: %v", tk.Error())
			http.Error(w, "publish failed", http.StatusBadGateway)
			return
		}
		log.Printf("web: published control command %q", cmd)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "command": cmd})
	})

	http.HandleFunc("/api/statistics", func(w http.ResponseWriter, r *http.Request) {
		if logger == nil {
			http.Error(w, "statistics unavailable", http.StatusServiceUnavailable)
			return
		}
		days := 7
		if v := r.URL.Query().Get("days"); v != "" {
			fmt.Sscanf(v, "%d", &days)
		}
		stats, err := logger.Statistics(days)
		if err != nil {
			log.Printf("web: statistics error: %v", err)
			http.Error(w, "statistics failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	// 4) Websocket status stream
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}

		clientsMu.Lock()
		clients[conn] = true
		clientsMu.Unlock()
		log.Println("web: websocket client connected")

		// Read loop only to detect the close.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					clientsMu.Lock()
					delete(clients, conn)
					clientsMu.Unlock()
					conn.Close()
					log.Println("web: websocket client disconnected")
					return
				}
			}
		}()
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
