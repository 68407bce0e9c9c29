package serial

import (
	"io"

	"wavescope/config"
)

// Port is a serial link to a scope device. NativePort backs it with
// github.com/tarm/serial; tests use an in-memory pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC ignores it
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the configuration used when only a device is given
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        config.DefaultBaud,
		ReadTimeout: 100,
	}
}

// FromConfig converts the serial section of a scope configuration
func FromConfig(c config.SerialConfig) *Config {
	cfg := DefaultConfig(c.Device)
	if c.Baud > 0 {
		cfg.Baud = c.Baud
	}
	return cfg
}
