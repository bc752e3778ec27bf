//go:build !libnfc

package main

import (
	"errors"

	"github.com/gregLibert/emv-reader/internal/config"
	"github.com/gregLibert/emv-reader/pkg/transport"
)

func newLibNFCProvider(*config.ScanConfig) (transport.Provider, error) {
	return nil, errors.New("built without libnfc support (rebuild with -tags libnfc)")
}
