package presence

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	bluezService         = "org.bluez"
	bluezDeviceConnected = "org.bluez.Device1.Connected"
)

// BlueZSource asks the BlueZ daemon over the system D-Bus whether a paired
// device is connected. The bus is dialled on the first probe, and again after
// a failed dial, so devices configured while running work without a restart.
type BlueZSource struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	dial    func() (*dbus.Conn, error)
	adapter string
}

// NewBlueZSource creates a source for the given controller, "hci0" when
// empty. It does not touch the bus.
func NewBlueZSource(adapter string) *BlueZSource {
	if adapter == "" {
		adapter = "hci0"
	}
	return &BlueZSource{dial: func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() }, adapter: adapter}
}

// Close releases the bus connection, if one was opened.
func (b *BlueZSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *BlueZSource) connection() (*dbus.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return b.conn, nil
	}
	conn, err := b.dial()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	b.conn = conn
	return conn, nil
}

// IsConnected reports the Connected property of the device with the given
// MAC address. A device BlueZ does not know about is reported as an error.
func (b *BlueZSource) IsConnected(ctx context.Context, address string) (bool, error) {
	conn, err := b.connection()
	if err != nil {
		return false, err
	}
	obj := conn.Object(bluezService, DevicePath(b.adapter, address))

	var variant dbus.Variant
	err = obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0,
		"org.bluez.Device1", "Connected").Store(&variant)
	if err != nil {
		return false, fmt.Errorf("get %s for %s: %w", bluezDeviceConnected, address, err)
	}

	connected, ok := variant.Value().(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s value %v for %s", bluezDeviceConnected, variant.Value(), address)
	}
	return connected, nil
}

// DevicePath maps a MAC address to its BlueZ object path, e.g.
// /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF.
func DevicePath(adapter, address string) dbus.ObjectPath {
	mac := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(address), ":", "_"))
	return dbus.ObjectPath("/org/bluez/" + adapter + "/dev_" + mac)
}
