package main

import (
	"log"

	"github.com/ficrammanifur/smart-robotic-arm/internal/app"
	"github.com/ficrammanifur/smart-robotic-arm/internal/config"
)

func main() {
	log.Println("starting smart arm dashboard backend")

	// Load configuration
	if err := config.InitGlobal("smartarm_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunWeb(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
