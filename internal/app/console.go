package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ficrammanifur/smart-robotic-arm/internal/config"
	"github.com/ficrammanifur/smart-robotic-arm/internal/control"
)

// RunConsole subscribes to the status topic and prints one line per
// snapshot until interrupted.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s control.Status
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}

		dist := "   --"
		if s.Distance >= 0 {
			dist = fmt.Sprintf("%5.1f", s.Distance)
		}
		fmt.Printf("[STAT] mode=%-6s  dist=%scm  servos=%v  motor=%4d\n",
			s.Mode, dist, s.Servos, s.MotorSpeed)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	dataToken := client.Subscribe(cfg.TopicData, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Printf("[DATA] %s\n", msg.Payload())
	})
	dataToken.Wait()
	if dataToken.Error() != nil {
		return dataToken.Error()
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
