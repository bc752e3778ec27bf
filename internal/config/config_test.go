package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var scanVars = []string{
	"EMV_DRIVER",
	"EMV_READER_INDEX",
	"EMV_LIBNFC_DEVICE",
	"EMV_SCAN_TIMEOUT",
	"EMV_VERBOSE",
	"EMV_TRACE",
}

// clearScanEnv unsets every scan variable for the duration of the test.
func clearScanEnv(t *testing.T) {
	t.Helper()
	for _, key := range scanVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestGetScanConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want *ScanConfig
	}{
		{
			name: "Defaults",
			want: &ScanConfig{Driver: DriverPCSC, Timeout: 60 * time.Second},
		},
		{
			name: "All set",
			env: map[string]string{
				"EMV_DRIVER":        "libnfc",
				"EMV_READER_INDEX":  "2",
				"EMV_LIBNFC_DEVICE": "pn532_uart:/dev/ttyUSB0",
				"EMV_SCAN_TIMEOUT":  "15s",
				"EMV_VERBOSE":       "true",
				"EMV_TRACE":         "1",
			},
			want: &ScanConfig{
				Driver:       DriverLibNFC,
				ReaderIndex:  2,
				LibNFCDevice: "pn532_uart:/dev/ttyUSB0",
				Timeout:      15 * time.Second,
				Verbose:      true,
				Trace:        true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearScanEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := GetScanConfig()
			if err != nil {
				t.Fatalf("GetScanConfig() failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("GetScanConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetScanConfig_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"EMV_DRIVER", "bluetooth"},
		{"EMV_READER_INDEX", "-1"},
		{"EMV_READER_INDEX", "first"},
		{"EMV_SCAN_TIMEOUT", "soon"},
		{"EMV_SCAN_TIMEOUT", "0s"},
		{"EMV_SCAN_TIMEOUT", "-5s"},
		{"EMV_VERBOSE", "loud"},
		{"EMV_TRACE", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearScanEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := GetScanConfig()
			if err == nil {
				t.Fatalf("GetScanConfig() = %+v, want error", cfg)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err, tt.key)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	clearScanEnv(t)

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("EMV_DRIVER=sim\nEMV_SCAN_TIMEOUT=5s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadEnv(envFile); err != nil {
		t.Fatalf("LoadEnv() failed: %v", err)
	}

	cfg, err := GetScanConfig()
	if err != nil {
		t.Fatalf("GetScanConfig() failed: %v", err)
	}
	if cfg.Driver != DriverSim || cfg.Timeout != 5*time.Second {
		t.Errorf("GetScanConfig() = %+v, want sim driver with 5s timeout", cfg)
	}
}

func TestLoadEnv_MissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadEnv() on a missing file = %v, want nil", err)
	}
}
