package tag

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clausecker/freefare"

	"github.com/dotside-studios/davi-ndef/ndef"
)

const (
	maxRetries          = 5
	baseDelay           = 500 * time.Millisecond
	maxReconnectTries   = 10
	reconnectDelay      = 2 * time.Second
	deviceCheckInterval = 2 * time.Second
	cardCheckInterval   = 250 * time.Millisecond
	pollingInterval     = 100 * time.Millisecond
	idleCheckInterval   = 200 * time.Millisecond
	writeCheckInterval  = 50 * time.Millisecond
	errorCooldownPeriod = 10 * time.Second
	maxRetriesCooldown  = 30 * time.Second
)

// Data is one read result emitted by the Reader. Message is nil for
// factory-mode cards that carry no NDEF data yet.
type Data struct {
	UID     string
	Message *ndef.Message
	Raw     []byte
	Err     error
}

// Status describes the reader device connection state.
type Status struct {
	Connected   bool
	Message     string
	CardPresent bool
}

// Reader manages NFC device interactions and broadcasts decoded NDEF
// messages as tags come and go.
type Reader struct {
	manager          Manager
	device           Device
	hasDevice        bool
	devicePath       string
	dataChan         chan Data
	statusChan       chan Status
	stopChan         chan struct{}
	cache            *tagCache
	status           Status
	statusMux        sync.RWMutex
	cardPresent      bool
	isWriting        atomic.Bool // read by the worker, written by WriteMessage
	operationMutex   sync.Mutex
	operationTimeout time.Duration
	workerWg         sync.WaitGroup
}

// NewReader creates a Reader polling the device at deviceStr. An empty
// deviceStr selects the first device the manager lists. The initial
// connection attempt is made immediately; on failure the worker keeps
// retrying in the background.
func NewReader(deviceStr string, manager Manager, opTimeout time.Duration) (*Reader, error) {
	if manager == nil {
		return nil, fmt.Errorf("tag manager cannot be nil")
	}
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}

	r := &Reader{
		manager:          manager,
		dataChan:         make(chan Data, 1),
		statusChan:       make(chan Status, 1),
		stopChan:         make(chan struct{}),
		cache:            newTagCache(),
		devicePath:       deviceStr,
		status:           Status{Connected: false, Message: "No device connected"},
		operationTimeout: opTimeout,
	}

	if err := r.tryConnect(); err != nil {
		log.Printf("Initial device connection failed: %v. Worker will retry.", err)
	}
	return r, nil
}

// Start begins polling in a separate goroutine.
func (r *Reader) Start() {
	r.workerWg.Add(1)
	go r.worker()
}

// Stop gracefully shuts down the Reader worker and waits for it to finish.
func (r *Reader) Stop() {
	select {
	case <-r.stopChan:
		return // already stopping
	default:
		close(r.stopChan)
	}
	r.workerWg.Wait()
}

// Close releases the device. Use Stop to shut down the worker.
func (r *Reader) Close() {
	if r.hasDevice && r.device != nil {
		if err := r.device.Close(); err != nil {
			log.Printf("Error closing NFC device: %v", err)
		}
		r.device = nil
		r.hasDevice = false
	}
}

// Data returns a channel that provides read results as tags are scanned.
func (r *Reader) Data() <-chan Data {
	return r.dataChan
}

// StatusUpdates returns a channel that provides device status updates.
func (r *Reader) StatusUpdates() <-chan Status {
	return r.statusChan
}

// Status returns the current device status.
func (r *Reader) Status() Status {
	r.statusMux.RLock()
	defer r.statusMux.RUnlock()
	return r.status
}

// LastScannedUID returns the UID of the most recently scanned tag.
func (r *Reader) LastScannedUID() string {
	return r.cache.lastScanned()
}

func (r *Reader) setStatus(connected bool, message string) {
	r.statusMux.Lock()
	r.status = Status{Connected: connected, Message: message, CardPresent: r.cardPresent}
	status := r.status
	r.statusMux.Unlock()
	r.broadcastStatus(status)
}

func (r *Reader) setCardPresent(present bool) {
	r.statusMux.Lock()
	if r.cardPresent == present {
		r.statusMux.Unlock()
		return
	}
	r.cardPresent = present
	status := r.status
	status.CardPresent = present
	if present {
		status.Message = "Card detected"
	} else {
		status.Message = "Card removed"
		r.cache.clear()
	}
	r.status = status
	r.statusMux.Unlock()
	r.broadcastStatus(status)
}

func (r *Reader) broadcastStatus(status Status) {
	select {
	case r.statusChan <- status:
	default:
		// No listener or channel full, drop the update.
	}
}

// isTimeoutError checks if an error is related to USB or device
// communication timeouts.
func isTimeoutError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "Operation timed out") ||
		strings.Contains(err.Error(), "operation timed out") ||
		strings.Contains(err.Error(), "timeout"))
}

// isDeviceClosedError checks if an error indicates the device has been
// closed.
func isDeviceClosedError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "device closed")
}

// isIOError checks if an error is related to device I/O problems, which
// usually indicate disconnection.
func isIOError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "input / output error") ||
		strings.Contains(err.Error(), "Input/output error") ||
		strings.Contains(err.Error(), "i/o error") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "Operation not permitted"))
}

// isDeviceConfigError checks if an error is related to device configuration
// issues.
func isDeviceConfigError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "device not configured") ||
		strings.Contains(err.Error(), "Device not configured") ||
		strings.Contains(err.Error(), "Unable to write to USB") ||
		strings.Contains(err.Error(), "RDR_to_PC_DataBlock"))
}

// tryConnect attempts to connect to an NFC device, preferring the configured
// device path when it is present in the device list.
func (r *Reader) tryConnect() error {
	if r.hasDevice && r.device != nil {
		if err := r.device.InitiatorInit(); err == nil {
			return nil
		}
		if err := r.device.Close(); err != nil {
			log.Printf("Error closing unresponsive device: %v", err)
		}
		r.device = nil
		r.hasDevice = false
	}

	r.setCardPresent(false)

	devices, err := r.manager.ListDevices()
	if err != nil {
		r.setStatus(false, fmt.Sprintf("Error listing NFC devices: %v", err))
		return fmt.Errorf("listing NFC devices: %w", err)
	}
	if len(devices) == 0 {
		r.setStatus(false, "Waiting for NFC reader to be connected...")
		return fmt.Errorf("no NFC devices found")
	}

	deviceStr := ""
	if r.devicePath != "" {
		for _, dev := range devices {
			if dev == r.devicePath {
				deviceStr = dev
				break
			}
		}
	}
	if deviceStr == "" {
		deviceStr = devices[0]
	}

	device, err := r.manager.OpenDevice(deviceStr)
	if err != nil {
		r.setStatus(false, fmt.Sprintf("Failed to open device %s: %v", deviceStr, err))
		return fmt.Errorf("opening device %s: %w", deviceStr, err)
	}
	if err := device.InitiatorInit(); err != nil {
		device.Close()
		r.setStatus(false, fmt.Sprintf("Failed to initialize device %s: %v", deviceStr, err))
		return fmt.Errorf("initializing device %s: %w", deviceStr, err)
	}

	r.device = device
	r.hasDevice = true
	r.devicePath = deviceStr
	r.cache.clear()

	log.Printf("NFC device connected - Name: %s, Connection: %s, Path: %s",
		device.String(), device.Connection(), deviceStr)
	r.setStatus(true, fmt.Sprintf("Connected to %s via %s", device.String(), device.Connection()))
	return nil
}

// reconnect attempts to re-establish connection with the NFC device with
// increasing delays between attempts.
func (r *Reader) reconnect() error {
	r.cache.clear()
	r.setCardPresent(false)

	for attempt := 1; attempt <= maxReconnectTries; attempt++ {
		if r.hasDevice && r.device != nil {
			if err := r.device.Close(); err != nil {
				log.Printf("Error closing device during reconnect: %v", err)
			}
			r.device = nil
			r.hasDevice = false
		}

		r.setStatus(false, fmt.Sprintf("Attempting to reconnect (attempt %d/%d)", attempt, maxReconnectTries))
		if err := r.tryConnect(); err == nil {
			log.Printf("Reconnection attempt %d successful.", attempt)
			return nil
		}

		select {
		case <-r.stopChan:
			return fmt.Errorf("reconnection aborted by stop signal")
		case <-time.After(reconnectDelay * time.Duration(attempt)):
		}
	}

	r.setStatus(false, "Failed to reconnect after multiple attempts")
	return fmt.Errorf("failed to reconnect device after %d attempts", maxReconnectTries)
}

// forceReconnect fully closes and reopens the device. Some readers need a
// pause after being closed before they can be reopened.
func (r *Reader) forceReconnect() error {
	if r.hasDevice && r.device != nil {
		if err := r.device.Close(); err != nil {
			log.Printf("Error closing device during force reconnect: %v", err)
		}
		r.device = nil
		r.hasDevice = false
		time.Sleep(3 * time.Second)
	}

	r.cache.clear()
	r.setCardPresent(false)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := r.tryConnect(); err != nil {
			lastErr = err
			select {
			case <-r.stopChan:
				return fmt.Errorf("force reconnection aborted by stop signal")
			case <-time.After(time.Second * time.Duration(attempt+1)):
			}
			continue
		}
		return nil
	}

	r.setStatus(false, "Force reconnect failed")
	return fmt.Errorf("force reconnect failed after multiple attempts: %v", lastErr)
}

// worker is the main polling loop. It handles device errors, reconnection,
// and broadcasts tag data.
func (r *Reader) worker() {
	retryCount := 0
	deviceCheckTicker := time.NewTicker(deviceCheckInterval)
	cardCheckTicker := time.NewTicker(cardCheckInterval)
	cooldownTimer := time.NewTimer(0)
	if !cooldownTimer.Stop() {
		select {
		case <-cooldownTimer.C:
		default:
		}
	}
	inCooldown := false

	defer func() {
		deviceCheckTicker.Stop()
		cardCheckTicker.Stop()
		cooldownTimer.Stop()
		r.Close()
		r.setStatus(false, "Worker stopped, device disconnected.")
		r.workerWg.Done()
	}()

	log.Println("Tag reader worker started.")

	for {
		select {
		case <-r.stopChan:
			log.Println("Tag reader worker stopping.")
			return

		case <-deviceCheckTicker.C:
			if !r.hasDevice && !inCooldown {
				if err := r.tryConnect(); err != nil {
					log.Printf("Device check: connection attempt failed: %v", err)
				} else {
					retryCount = 0
				}
			}

		case <-cardCheckTicker.C:
			present := r.cache.isCardPresent()
			if r.cardPresent != present {
				r.setCardPresent(present)
				if present {
					log.Printf("Card presence changed: DETECTED (UID: %s)", r.cache.lastScanned())
				} else {
					log.Println("Card presence changed: REMOVED/timed out")
				}
			}

		case <-cooldownTimer.C:
			log.Println("Device cooldown period ended.")
			inCooldown = false
			if err := r.forceReconnect(); err != nil {
				log.Printf("Reconnection after cooldown failed: %v", err)
			}

		default:
			if !r.hasDevice || r.device == nil || inCooldown {
				time.Sleep(idleCheckInterval)
				continue
			}
			if r.isWriting.Load() {
				time.Sleep(writeCheckInterval)
				continue
			}

			tags, err := r.getTags()
			if err != nil {
				if r.handlePollError(err, &retryCount, &inCooldown, cooldownTimer) {
					continue
				}
				return // stop signal received during error handling
			}
			retryCount = 0

			r.pollTags(tags)
			time.Sleep(pollingInterval)
		}
	}
}

// handlePollError classifies a getTags failure and drives the recovery
// action. It returns false only when the stop signal interrupted recovery.
func (r *Reader) handlePollError(err error, retryCount *int, inCooldown *bool, cooldownTimer *time.Timer) bool {
	log.Printf("Error getting tags: %v", err)
	errString := err.Error()

	if isIOError(err) || isDeviceConfigError(err) {
		if r.hasDevice && r.device != nil {
			r.device.Close()
		}
		r.device = nil
		r.hasDevice = false
		r.setStatus(false, fmt.Sprintf("Device error: %v", err))
		r.isWriting.Store(false)

		// ACR122-style failures need a cooldown before the device
		// accepts a new open.
		if strings.Contains(errString, "Operation not permitted") ||
			strings.Contains(errString, "broken pipe") ||
			strings.Contains(errString, "RDR_to_PC_DataBlock") {
			if !*inCooldown {
				*inCooldown = true
				log.Printf("Entering cooldown for %v", errorCooldownPeriod)
				cooldownTimer.Reset(errorCooldownPeriod)
			}
			return true
		}

		time.Sleep(2 * time.Second)
		if reconnectErr := r.forceReconnect(); reconnectErr != nil {
			log.Printf("Force reconnection failed: %v", reconnectErr)
		}
		return true
	}

	if isTimeoutError(err) || isDeviceClosedError(err) {
		if *retryCount < maxRetries {
			delay := time.Duration(math.Pow(2, float64(*retryCount))) * baseDelay
			*retryCount++
			log.Printf("Retrying connection (attempt %d/%d) in %v...", *retryCount, maxRetries, delay)

			select {
			case <-time.After(delay):
			case <-r.stopChan:
				return false
			}

			r.isWriting.Store(false)
			if reconnectErr := r.reconnect(); reconnectErr != nil {
				log.Printf("Device reconnection failed: %v", reconnectErr)
			} else {
				*retryCount = 0
			}
		} else {
			log.Printf("Max retries reached: %v. Closing device.", err)
			if r.hasDevice && r.device != nil {
				r.device.Close()
			}
			r.device = nil
			r.hasDevice = false
			r.setStatus(false, "Max retries reached for device error.")
			if !*inCooldown {
				*inCooldown = true
				cooldownTimer.Reset(maxRetriesCooldown)
			}
		}
		return true
	}

	log.Printf("Unhandled error from getTags: %v", err)
	r.dataChan <- Data{Err: fmt.Errorf("get tags error: %w", err)}
	time.Sleep(time.Second)
	return true
}

// pollTags reads each detected MIFARE Classic tag and broadcasts new or
// changed messages.
func (r *Reader) pollTags(tags []ClassicTag) {
	for _, t := range tags {
		if !isClassic(t) {
			continue
		}

		uid := t.UID()
		msg, raw, err := r.readMessage(t)

		if uid != "" {
			r.cache.markSeen()
		}

		if err != nil {
			log.Printf("Error reading tag UID %s: %v", uid, err)
			r.dataChan <- Data{UID: uid, Err: err}
			continue
		}

		if r.cache.hasChanged(uid, raw) {
			log.Printf("Tag data changed or new tag: UID %s", uid)
			r.dataChan <- Data{UID: uid, Message: msg, Raw: raw}
		}
	}
}

// readMessage reads the NFC Forum application from a MIFARE Classic tag and
// decodes the NDEF message it holds. Factory-mode cards (no MAD yet) return
// a nil message without error.
func (r *Reader) readMessage(t ClassicTag) (*ndef.Message, []byte, error) {
	if err := t.Connect(); err != nil {
		return nil, nil, fmt.Errorf("tag connect: %w", err)
	}
	defer t.Disconnect()

	mad, madErr := t.ReadMad()
	if madErr != nil {
		// A MAD read failure on a card that still authenticates with the
		// factory key means the card has never been formatted.
		madSector := byte(0x00)
		if is4K(t) {
			madSector = 0x10
		}
		trailerBlock := freefare.ClassicSectorLastBlock(madSector)
		if authErr := t.Authenticate(trailerBlock, factoryKey, int(freefare.KeyA)); authErr == nil {
			log.Printf("MAD read failed (%v) but factory key works; assuming factory mode.", madErr)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("MAD read: %w", madErr)
	}

	buffer := make([]byte, 4096)
	n, err := t.ReadApplication(mad, freefare.MadNFCForumAid, buffer, publicKey, int(freefare.KeyA))
	if err != nil {
		return nil, nil, fmt.Errorf("read NFC Forum application: %w", err)
	}

	raw, found := FindNDEF(buffer[:n])
	if !found {
		return nil, nil, nil
	}
	raw = append([]byte(nil), raw...)

	msg, err := ndef.Decode(raw)
	if err != nil {
		return nil, raw, fmt.Errorf("decode NDEF message: %w", err)
	}
	return msg, raw, nil
}

// WriteMessage writes an NDEF message to the currently present MIFARE
// Classic card. Factory-mode cards are formatted for NDEF first.
func (r *Reader) WriteMessage(msg *ndef.Message) error {
	return r.withTagOperation(func() error {
		if !r.hasDevice {
			return fmt.Errorf("no NFC device connected")
		}

		r.isWriting.Store(true)
		defer r.isWriting.Store(false)

		tags, err := r.getTags()
		if err != nil {
			return fmt.Errorf("failed to get tags: %w", err)
		}
		if len(tags) == 0 {
			return fmt.Errorf("no card detected")
		}

		for _, t := range tags {
			if !isClassic(t) {
				continue
			}
			return r.writeTag(t, msg)
		}
		return fmt.Errorf("no compatible cards found")
	})
}

func (r *Reader) writeTag(t ClassicTag, msg *ndef.Message) error {
	tlv, err := WrapMessage(msg)
	if err != nil {
		return err
	}

	if err := t.Connect(); err != nil {
		return fmt.Errorf("tag connect: %w", err)
	}
	defer t.Disconnect()

	// Cards still on the factory key get their sector trailers set up for
	// NDEF before any data is written.
	sector0Trailer := freefare.ClassicSectorLastBlock(0)
	if authErr := t.Authenticate(sector0Trailer, factoryKey, int(freefare.KeyA)); authErr == nil {
		log.Printf("Factory mode card detected (UID %s), initializing sector trailers.", t.UID())
		if err := initFactoryCard(t); err != nil {
			return fmt.Errorf("initialize factory card: %w", err)
		}
	}

	if err := writeDataBlocks(t, tlv); err != nil {
		return err
	}
	log.Printf("Wrote %d TLV bytes to card UID %s", len(tlv), t.UID())
	return nil
}

// initFactoryCard rewrites every sector trailer of a factory-keyed card:
// MAD sectors get the MAD key, application sectors get the NFC Forum public
// key.
func initFactoryCard(t ClassicTag) error {
	maxSector := 15
	if is4K(t) {
		maxSector = 39
	}

	for sector := 0; sector <= maxSector; sector++ {
		trailerBlock := freefare.ClassicSectorLastBlock(byte(sector))

		t.Disconnect()
		if err := t.Connect(); err != nil {
			return fmt.Errorf("connect before sector %d: %w", sector, err)
		}
		if err := t.Authenticate(trailerBlock, factoryKey, int(freefare.KeyA)); err != nil {
			return fmt.Errorf("authenticate sector %d with factory key: %w", sector, err)
		}

		var trailer [16]byte
		if sector == 0 || (is4K(t) && sector == 16) {
			// MAD sectors: data blocks readable with key A only.
			classicTrailerBlock(&trailer, madKeyA, 0x78, 0x77, 0x88, 0xC1, factoryKey)
		} else {
			// NDEF application sectors: data blocks read/write with key A.
			classicTrailerBlock(&trailer, publicKey, 0x7F, 0x07, 0x88, 0x40, factoryKey)
		}

		if err := t.WriteBlock(trailerBlock, trailer); err != nil {
			return fmt.Errorf("write trailer for sector %d: %w", sector, err)
		}
	}
	return nil
}

// classicTrailerBlock assembles a MIFARE Classic sector trailer from its key
// A, raw access bytes, general purpose byte, and key B.
func classicTrailerBlock(block *[16]byte, keyA [6]byte, ab0, ab1, ab2, gpb byte, keyB [6]byte) {
	copy(block[0:6], keyA[:])
	block[6] = ab0
	block[7] = ab1
	block[8] = ab2
	block[9] = gpb
	copy(block[10:16], keyB[:])
}

// writeDataBlocks writes TLV-framed data into the data blocks of the NDEF
// application sectors, padding the final block with zeros. Sector 0 (and
// sector 16 on 4K cards) holds the MAD and is skipped.
func writeDataBlocks(t ClassicTag, data []byte) error {
	padded := make([]byte, (len(data)+15)/16*16)
	copy(padded, data)

	maxSector := 15
	if is4K(t) {
		maxSector = 39
	}

	offset := 0
	for sector := 1; sector <= maxSector && offset < len(padded); sector++ {
		if is4K(t) && sector == 16 {
			continue // MAD2
		}

		trailerBlock := freefare.ClassicSectorLastBlock(byte(sector))
		if err := t.Authenticate(trailerBlock, publicKey, int(freefare.KeyA)); err != nil {
			return fmt.Errorf("authenticate sector %d: %w", sector, err)
		}

		first, count := classicSectorDataBlocks(sector)
		for b := 0; b < count && offset < len(padded); b++ {
			var blockData [16]byte
			copy(blockData[:], padded[offset:offset+16])
			if err := t.WriteBlock(first+byte(b), blockData); err != nil {
				return fmt.Errorf("write block %d in sector %d: %w", first+byte(b), sector, err)
			}
			offset += 16
		}
	}

	if offset < len(padded) {
		return fmt.Errorf("message does not fit on card: %d of %d bytes written", offset, len(padded))
	}
	return nil
}

// classicSectorDataBlocks returns the first data block of a sector and how
// many data blocks it has. Sectors 0-31 have 3 data blocks, the large 4K
// sectors have 15.
func classicSectorDataBlocks(sector int) (first byte, count int) {
	if sector < 32 {
		return byte(sector * 4), 3
	}
	return byte(128 + (sector-32)*16), 15
}

// withTagOperation performs a protected tag operation with a timeout.
func (r *Reader) withTagOperation(operation func() error) error {
	r.operationMutex.Lock()
	defer r.operationMutex.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- operation()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.operationTimeout):
		return fmt.Errorf("tag operation timed out after %v", r.operationTimeout)
	}
}

// getTags retrieves available tags from the connected NFC device.
func (r *Reader) getTags() ([]ClassicTag, error) {
	if !r.hasDevice || r.device == nil {
		return nil, fmt.Errorf("no device connected")
	}
	tags, err := r.manager.GetTags(r.device)
	if err != nil {
		return nil, fmt.Errorf("manager GetTags: %w", err)
	}
	return tags, nil
}
