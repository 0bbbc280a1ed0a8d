package main

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/dotside-studios/davi-ndef/server"
	"github.com/dotside-studios/davi-ndef/tag"
)

// Agent ties a tag reader to the WebSocket server and manages their shared
// lifecycle.
type Agent struct {
	Logger         *log.Logger
	Manager        tag.Manager
	Reader         *tag.Reader
	Server         *server.Server
	APISecret      string
	ServerPort     int
	SessionTimeout time.Duration

	currentDevice string
}

func NewAgent(manager tag.Manager) *Agent {
	return &Agent{
		Logger:  log.New(os.Stderr, "[agent] ", log.LstdFlags),
		Manager: manager,
	}
}

// Start initializes the tag reader on the given device (empty string means
// auto-detect) and starts the server in the background.
func (a *Agent) Start(devicePath string) error {
	if a.Reader != nil {
		if devicePath == a.currentDevice {
			a.Logger.Printf("Reader already running on device: %s", devicePath)
			return nil
		}
		return errors.New("agent is already running")
	}

	reader, err := tag.NewReader(devicePath, a.Manager, 5*time.Second)
	if err != nil {
		a.Logger.Printf("Error initializing tag reader: %v", err)
		return err
	}
	a.Reader = reader
	a.currentDevice = devicePath

	a.Server = server.New(server.Config{
		Reader:         a.Reader,
		Port:           a.ServerPort,
		APISecret:      a.APISecret,
		SessionTimeout: a.SessionTimeout,
	})

	go a.Server.Start()
	return nil
}

func (a *Agent) Stop() {
	if a.Reader == nil && a.Server == nil {
		a.Logger.Println("Agent is not running")
		return
	}

	a.Logger.Println("Stopping agent...")

	if a.Server != nil {
		a.Server.Stop()
		a.Server = nil
	}

	if a.Reader != nil {
		a.Reader.Stop()
		a.Reader.Close()
		a.Reader = nil
	}

	a.Logger.Println("Agent stopped successfully")
}

// Running reports whether the agent has an active reader.
func (a *Agent) Running() bool {
	return a.Reader != nil
}
