// Package tag reads and writes NDEF messages on MIFARE Classic media
// through libnfc and libfreefare.
package tag

import (
	"fmt"
	"time"

	"github.com/clausecker/freefare"
	"github.com/clausecker/nfc/v2"
)

const deviceEnumRetries = 3

// Well-known MIFARE Classic keys.
var (
	madKeyA    = [6]byte{0xa0, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5} // MIFARE Application Directory key A
	factoryKey = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff} // Factory default key
	publicKey  = [6]byte{0xd3, 0xf7, 0xd3, 0xf7, 0xd3, 0xf7} // NFC Forum public key
)

// Device defines the operations the reader needs from an NFC device.
type Device interface {
	Close() error
	InitiatorInit() error
	String() string
	Connection() string
}

// ClassicTag defines the operations the reader needs from a MIFARE Classic
// tag. It is the subset of freefare.ClassicTag exercised by the read and
// write paths, kept as an interface so tests can substitute a fake tag.
type ClassicTag interface {
	UID() string
	Type() int
	Connect() error
	Disconnect() error
	ReadMad() (*freefare.Mad, error)
	ReadApplication(mad *freefare.Mad, aid freefare.MadAid, buffer []byte, key [6]byte, keyType int) (int, error)
	Authenticate(block byte, key [6]byte, keyType int) error
	TrailerBlockPermission(block byte, perm uint16, keyType int) (bool, error)
	WriteBlock(block byte, data [16]byte) error
}

// Manager abstracts NFC device listing, opening, and tag retrieval.
type Manager interface {
	OpenDevice(deviceStr string) (Device, error)
	ListDevices() ([]string, error)
	GetTags(dev Device) ([]ClassicTag, error)
}

// libnfcDevice wraps an nfc.Device to implement Device.
type libnfcDevice struct {
	device nfc.Device
}

func (d *libnfcDevice) Close() error         { return d.device.Close() }
func (d *libnfcDevice) InitiatorInit() error { return d.device.InitiatorInit() }
func (d *libnfcDevice) String() string       { return d.device.String() }
func (d *libnfcDevice) Connection() string   { return d.device.Connection() }

// classicTag wraps a freefare.ClassicTag to implement ClassicTag.
type classicTag struct {
	tag freefare.ClassicTag
}

func (t *classicTag) UID() string        { return t.tag.UID() }
func (t *classicTag) Type() int          { return int(t.tag.Type()) }
func (t *classicTag) Connect() error     { return t.tag.Connect() }
func (t *classicTag) Disconnect() error  { return t.tag.Disconnect() }
func (t *classicTag) ReadMad() (*freefare.Mad, error) {
	return t.tag.ReadMad()
}
func (t *classicTag) ReadApplication(mad *freefare.Mad, aid freefare.MadAid, buffer []byte, key [6]byte, keyType int) (int, error) {
	return t.tag.ReadApplication(mad, aid, buffer, key, keyType)
}
func (t *classicTag) Authenticate(block byte, key [6]byte, keyType int) error {
	return t.tag.Authenticate(block, key, keyType)
}
func (t *classicTag) TrailerBlockPermission(block byte, perm uint16, keyType int) (bool, error) {
	return t.tag.TrailerBlockPermission(block, perm, keyType)
}
func (t *classicTag) WriteBlock(block byte, data [16]byte) error {
	return t.tag.WriteBlock(block, data)
}

// LibnfcManager implements Manager over the actual nfc and freefare
// libraries.
type LibnfcManager struct{}

// NewLibnfcManager creates a manager backed by libnfc hardware.
func NewLibnfcManager() *LibnfcManager {
	return &LibnfcManager{}
}

func (m *LibnfcManager) OpenDevice(deviceStr string) (Device, error) {
	dev, err := nfc.Open(deviceStr)
	if err != nil {
		return nil, err
	}
	return &libnfcDevice{device: dev}, nil
}

func (m *LibnfcManager) ListDevices() ([]string, error) {
	var devices []string
	var err error
	for i := 0; i < deviceEnumRetries; i++ {
		devices, err = nfc.ListDevices()
		if err == nil {
			return devices, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil, fmt.Errorf("failed to list NFC devices after %d retries: %w", deviceEnumRetries, err)
}

// GetTags polls the device for Freefare tags and returns the MIFARE Classic
// ones. Other tag families are skipped.
func (m *LibnfcManager) GetTags(dev Device) ([]ClassicTag, error) {
	wrapper, ok := dev.(*libnfcDevice)
	if !ok {
		return nil, fmt.Errorf("GetTags requires a libnfc device")
	}

	tags, err := freefare.GetTags(wrapper.device)
	if err != nil {
		return nil, err
	}
	var result []ClassicTag
	for _, t := range tags {
		if classic, ok := t.(freefare.ClassicTag); ok {
			result = append(result, &classicTag{tag: classic})
		}
	}
	return result, nil
}

// isClassic reports whether the tag is a MIFARE Classic 1K or 4K.
func isClassic(t ClassicTag) bool {
	return t.Type() == int(freefare.Classic1k) || t.Type() == int(freefare.Classic4k)
}

// is4K reports whether the tag is a MIFARE Classic 4K.
func is4K(t ClassicTag) bool {
	return t.Type() == int(freefare.Classic4k)
}
