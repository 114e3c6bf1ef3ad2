package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

var (
	apiURL      = flag.String("api", "http://localhost:8080", "MenuVoice HTTP API base URL")
	wsURL       = flag.String("ws", "ws://localhost:8080", "MenuVoice WebSocket base URL")
	identity    = flag.String("identity", "dashboard-sim", "Dashboard identity")
	room        = flag.String("room", "default", "Room name")
	contextFile = flag.String("context", "", "JSON file with menu items to push as the editing context on connect")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	config := &SimulatorConfig{
		APIURL:      *apiURL,
		WSURL:       *wsURL,
		Identity:    *identity,
		Room:        *room,
		ContextFile: *contextFile,
	}

	simulator := NewSimulator(config, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down dashboard simulator...")
		simulator.Stop()
		os.Exit(0)
	}()

	if err := simulator.Connect(); err != nil {
		logger.Fatal("Failed to connect to server", zap.Error(err))
	}

	simulator.Run()
}
