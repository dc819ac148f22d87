package main

import (
	"log"

	"github.com/ficrammanifur/smart-robotic-arm/internal/app"
	"github.com/ficrammanifur/smart-robotic-arm/internal/config"
)

func main() {
	log.Println("starting smart robotic arm controller")

	// Load configuration
	if err := config.InitGlobal("smartarm_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunController(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
