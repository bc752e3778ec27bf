//go:build libnfc

package main

import (
	"github.com/gregLibert/emv-reader/internal/config"
	"github.com/gregLibert/emv-reader/pkg/transport"
	"github.com/gregLibert/emv-reader/pkg/transport/libnfc"
)

func newLibNFCProvider(cfg *config.ScanConfig) (transport.Provider, error) {
	return &libnfc.Provider{Device: cfg.LibNFCDevice}, nil
}
