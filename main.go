// Package main provides an NDEF tag reader agent. It reads NDEF messages
// from MIFARE Classic tags and broadcasts the decoded records to connected
// WebSocket clients, with a system tray UI by default.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fyne.io/systray"

	"github.com/dotside-studios/davi-ndef/buildinfo"
	"github.com/dotside-studios/davi-ndef/tag"
)

const defaultPort = 18080

func main() {
	var (
		devicePathFlag string
		portFlag       int
		cliFlag        bool
		apiSecretFlag  string
		versionFlag    bool
	)

	flag.StringVar(&devicePathFlag, "device", "", "Connection string of the reader device (optional, auto-detects)")
	flag.IntVar(&portFlag, "port", defaultPort, "Port to listen on for the WebSocket interface")
	flag.BoolVar(&cliFlag, "cli", false, "Run in CLI mode (default: system tray mode)")
	flag.StringVar(&apiSecretFlag, "api-secret", "", "API secret for the session handshake (optional)")
	flag.BoolVar(&versionFlag, "version", false, "Print version and exit")
	flag.Parse()

	if versionFlag {
		log.SetFlags(0)
		log.Println(buildinfo.BuildInfo())
		return
	}

	agent := NewAgent(tag.NewLibnfcManager())
	agent.ServerPort = portFlag
	agent.APISecret = apiSecretFlag
	agent.SessionTimeout = 60 * time.Second

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cliFlag {
		if err := agent.Start(devicePathFlag); err != nil {
			log.Fatalf("Failed to start agent: %v", err)
		}
		defer agent.Stop()

		<-sigChan
		log.Println("Shutdown signal received, stopping agent...")
		return
	}

	// Default systray mode
	go func() {
		<-sigChan
		systray.Quit()
	}()

	NewSystrayApp(agent, devicePathFlag).Run()
}
