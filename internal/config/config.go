// Package config reads the demo command settings from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Drivers selectable through EMV_DRIVER.
const (
	DriverPCSC   = "pcsc"
	DriverLibNFC = "libnfc"
	DriverSim    = "sim"
)

// ScanConfig selects the transport and tunes the scan.
type ScanConfig struct {
	Driver string

	// ReaderIndex picks the PC/SC reader.
	ReaderIndex int

	// LibNFCDevice is the libnfc connection string ("" = first device).
	LibNFCDevice string

	Timeout time.Duration

	// Verbose prints a report of every exchange.
	Verbose bool

	// Trace logs raw APDUs.
	Trace bool
}

// LoadEnv loads envFile into the environment when it exists.
func LoadEnv(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	return nil
}

// GetScanConfig returns the scan settings, defaults overridden by the
// environment. A value that cannot be used is an error naming its variable.
func GetScanConfig() (*ScanConfig, error) {
	config := &ScanConfig{
		Driver:  DriverPCSC,
		Timeout: 60 * time.Second,
	}

	if driver := os.Getenv("EMV_DRIVER"); driver != "" {
		switch driver {
		case DriverPCSC, DriverLibNFC, DriverSim:
			config.Driver = driver
		default:
			return nil, fmt.Errorf("EMV_DRIVER: unknown driver %q (want %s, %s or %s)", driver, DriverPCSC, DriverLibNFC, DriverSim)
		}
	}

	if index := os.Getenv("EMV_READER_INDEX"); index != "" {
		i, err := strconv.Atoi(index)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("EMV_READER_INDEX: %q is not a reader index", index)
		}
		config.ReaderIndex = i
	}

	config.LibNFCDevice = os.Getenv("EMV_LIBNFC_DEVICE")

	if timeout := os.Getenv("EMV_SCAN_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("EMV_SCAN_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("EMV_SCAN_TIMEOUT: %s is not a positive duration", d)
		}
		config.Timeout = d
	}

	var err error
	if config.Verbose, err = envBool("EMV_VERBOSE"); err != nil {
		return nil, err
	}
	if config.Trace, err = envBool("EMV_TRACE"); err != nil {
		return nil, err
	}

	return config, nil
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}
