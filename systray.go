package main

import (
	"fmt"
	"log"
	"net"
	"os/exec"
	"runtime"
	"time"

	"fyne.io/systray"

	"github.com/dotside-studios/davi-ndef/buildinfo"
)

// getLocalIPs returns a list of local IPv4 addresses (excluding loopback).
func getLocalIPs() []string {
	var ips []string
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}

	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				ips = append(ips, ipNet.IP.String())
			}
		}
	}
	return ips
}

// SystrayApp manages the system tray interface for the agent.
type SystrayApp struct {
	agent         *Agent
	currentDevice string

	mStatus     *systray.MenuItem
	mConnection *systray.MenuItem
	mCardUID    *systray.MenuItem
	mServerURL  *systray.MenuItem
	mCopyURL    *systray.MenuItem
	mStart      *systray.MenuItem
	mStop       *systray.MenuItem
	mDeviceMenu *systray.MenuItem

	deviceMenuItems map[string]*systray.MenuItem
}

// NewSystrayApp creates a new systray application.
func NewSystrayApp(agent *Agent, initialDevice string) *SystrayApp {
	return &SystrayApp{
		agent:           agent,
		currentDevice:   initialDevice,
		deviceMenuItems: make(map[string]*systray.MenuItem),
	}
}

// Run starts the systray application. Blocks until quit.
func (s *SystrayApp) Run() {
	systray.Run(s.onReady, s.onExit)
}

func (s *SystrayApp) onReady() {
	s.setupUI()
	s.autoStartAgent()
	s.startStatusUpdater()
}

func (s *SystrayApp) onExit() {
	s.agent.Stop()
}

// setupUI initializes all menu items.
func (s *SystrayApp) setupUI() {
	systray.SetTitle(buildinfo.DisplayName)
	systray.SetTooltip(buildinfo.Description)

	// Status section
	s.mStatus = systray.AddMenuItem("Starting...", "Agent Status")
	s.mStatus.Disable()

	s.mConnection = systray.AddMenuItem("Reader: Disconnected", "Reader Status")
	s.mConnection.Disable()

	systray.AddSeparator()

	// Card info section
	s.mCardUID = systray.AddMenuItem("Card UID: None", "Current card UID")
	s.mCardUID.Disable()

	systray.AddSeparator()

	// Server URL section
	s.mServerURL = systray.AddMenuItem("Server: Not running", "WebSocket URL")
	s.mServerURL.Disable()
	s.mCopyURL = systray.AddMenuItem("Copy Server URL", "Copy WebSocket URL to clipboard")

	systray.AddSeparator()

	// Device management section
	s.mDeviceMenu = systray.AddMenuItem("Device", "Select reader device")
	mRefreshDevices := s.mDeviceMenu.AddSubMenuItem("Refresh Devices", "Refresh device list")
	s.mDeviceMenu.AddSubMenuItemCheckbox("Auto-detect", "Auto-detect device", true)

	systray.AddSeparator()

	// Agent control section
	s.mStart = systray.AddMenuItem("Start Agent", "Start the agent")
	s.mStop = systray.AddMenuItem("Stop Agent", "Stop the agent")
	s.mStart.Disable() // auto-starting
	s.mStop.Disable()

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	go s.handleMenuEvents(mRefreshDevices, mQuit)
}

// autoStartAgent starts the agent automatically on launch.
func (s *SystrayApp) autoStartAgent() {
	go func() {
		if err := s.agent.Start(s.currentDevice); err == nil {
			s.mStatus.SetTitle("Running")
			s.mServerURL.SetTitle("Server: " + s.serverURL())
			s.mStop.Enable()
		} else {
			s.mStatus.SetTitle("Failed to Start")
			s.mStart.Enable()
		}
		s.updateDeviceList()
	}()
}

// startStatusUpdater polls the reader for connection and card state.
func (s *SystrayApp) startStatusUpdater() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		lastUID := ""
		lastConnected := false

		for range ticker.C {
			reader := s.agent.Reader
			if reader == nil {
				continue
			}

			status := reader.Status()
			if status.Connected != lastConnected {
				if status.Connected {
					s.mConnection.SetTitle("Reader: Connected")
				} else {
					s.mConnection.SetTitle("Reader: Disconnected")
				}
				lastConnected = status.Connected
			}

			uid := reader.LastScannedUID()
			if uid != lastUID {
				if uid == "" {
					s.mCardUID.SetTitle("Card UID: None")
				} else {
					s.mCardUID.SetTitle("Card UID: " + uid)
				}
				lastUID = uid
			}
		}
	}()
}

// handleMenuEvents processes all menu click events.
func (s *SystrayApp) handleMenuEvents(mRefreshDevices, mQuit *systray.MenuItem) {
	for {
		select {
		case <-s.mStart.ClickedCh:
			s.handleStartAgent()
		case <-s.mStop.ClickedCh:
			s.handleStopAgent()
		case <-mRefreshDevices.ClickedCh:
			s.updateDeviceList()
		case <-s.mCopyURL.ClickedCh:
			if err := copyToClipboard(s.serverURL()); err != nil {
				log.Printf("[systray] Failed to copy to clipboard: %v", err)
			} else {
				log.Printf("[systray] Copied server URL to clipboard")
			}
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}

		s.handleDeviceSelection()
	}
}

func (s *SystrayApp) handleStartAgent() {
	if err := s.agent.Start(s.currentDevice); err == nil {
		s.mStatus.SetTitle("Running")
		s.mServerURL.SetTitle("Server: " + s.serverURL())
		s.mStart.Disable()
		s.mStop.Enable()
	} else {
		s.mStatus.SetTitle("Failed to Start")
	}
}

func (s *SystrayApp) handleStopAgent() {
	s.agent.Stop()
	s.mStatus.SetTitle("Stopped")
	s.mConnection.SetTitle("Reader: Disconnected")
	s.mServerURL.SetTitle("Server: Not running")
	s.mStop.Disable()
	s.mStart.Enable()
}

// handleDeviceSelection processes device menu selections.
func (s *SystrayApp) handleDeviceSelection() {
	for deviceName, menuItem := range s.deviceMenuItems {
		select {
		case <-menuItem.ClickedCh:
			if s.currentDevice != deviceName {
				s.switchDevice(deviceName, menuItem)
			}
		default:
			// No click event for this menu item
		}
	}
}

// switchDevice restarts the agent on a different reader device.
func (s *SystrayApp) switchDevice(deviceName string, menuItem *systray.MenuItem) {
	for _, item := range s.deviceMenuItems {
		item.Uncheck()
	}
	menuItem.Check()
	s.currentDevice = deviceName

	if s.agent.Running() {
		s.agent.Stop()
		if err := s.agent.Start(s.currentDevice); err == nil {
			s.mStatus.SetTitle("Running")
			s.mStop.Enable()
			s.mStart.Disable()
		} else {
			s.mStatus.SetTitle("Failed to Start")
			s.mStart.Enable()
			s.mStop.Disable()
		}
	}
}

// updateDeviceList refreshes the list of available devices.
func (s *SystrayApp) updateDeviceList() {
	for _, item := range s.deviceMenuItems {
		item.Hide()
	}
	s.deviceMenuItems = make(map[string]*systray.MenuItem)

	devices, err := s.agent.Manager.ListDevices()
	if err != nil {
		log.Printf("Error listing devices: %v", err)
		return
	}

	for _, device := range devices {
		deviceName := device
		isChecked := (s.currentDevice == deviceName) || (s.currentDevice == "" && len(s.deviceMenuItems) == 0)
		item := s.mDeviceMenu.AddSubMenuItemCheckbox(deviceName, "Select this device", isChecked)
		s.deviceMenuItems[deviceName] = item

		if isChecked && s.currentDevice == "" {
			s.currentDevice = deviceName
		}
	}
}

// serverURL returns the WebSocket URL clients should connect to, preferring
// a LAN address over localhost.
func (s *SystrayApp) serverURL() string {
	ip := "localhost"
	if ips := getLocalIPs(); len(ips) > 0 {
		ip = ips[0]
	}
	return fmt.Sprintf("ws://%s:%d/ws", ip, s.agent.ServerPort)
}

// copyToClipboard copies text to the system clipboard.
func copyToClipboard(text string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		cmd = exec.Command("xclip", "-selection", "clipboard")
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	if _, err = stdin.Write([]byte(text)); err != nil {
		return err
	}

	stdin.Close()
	return cmd.Wait()
}
