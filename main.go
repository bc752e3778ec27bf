package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gregLibert/emv-reader/internal/cardsim"
	"github.com/gregLibert/emv-reader/internal/config"
	"github.com/gregLibert/emv-reader/pkg/emv"
	"github.com/gregLibert/emv-reader/pkg/session"
	"github.com/gregLibert/emv-reader/pkg/transport"
	"github.com/gregLibert/emv-reader/pkg/transport/pcsc"
)

func main() {
	// --- 1. Configuration ---
	if err := config.LoadEnv(".env"); err != nil {
		log.Printf("Warning: %v", err)
	}
	cfg, err := config.GetScanConfig()
	if err != nil {
		log.Fatalf("Error reading configuration: %v", err)
	}

	driver := flag.String("driver", cfg.Driver, "Transport driver (pcsc, libnfc, sim)")
	timeout := flag.Duration("timeout", cfg.Timeout, "Scan timeout")
	verbose := flag.Bool("v", cfg.Verbose, "Print a report of every exchange")
	trace := flag.Bool("trace", cfg.Trace, "Log raw APDUs")
	flag.Parse()
	cfg.Driver = *driver

	provider, err := newProvider(cfg)
	if err != nil {
		log.Fatalf("Error selecting transport: %v", err)
	}

	// --- 2. Scan ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner := session.New(provider)
	scanner.Timeout = *timeout
	scanner.Verbose = *verbose
	scanner.Trace = *trace

	fmt.Println("=============================================")
	fmt.Printf(" Hold a contactless card on the reader (%s, %s)\n", cfg.Driver, *timeout)
	fmt.Println("=============================================")

	done := make(chan struct{})
	var exitCode int

	scanner.StartScan(ctx, func(res *emv.CardReadResult, err error) {
		defer close(done)

		switch {
		case err == nil:
			fmt.Println(res.Describe())
		case session.IsUserCancelled(err):
			fmt.Println("\n>> Scan cancelled")
		default:
			log.Printf("Scan failed: %v", err)
			exitCode = 1
		}
	})

	<-done
	stop()
	os.Exit(exitCode)
}

// newProvider builds the transport named by cfg.Driver.
func newProvider(cfg *config.ScanConfig) (transport.Provider, error) {
	switch cfg.Driver {
	case config.DriverPCSC:
		return &pcsc.Provider{ReaderIndex: cfg.ReaderIndex}, nil
	case config.DriverLibNFC:
		return newLibNFCProvider(cfg)
	case config.DriverSim:
		return &cardsim.Provider{
			Tags:  []*cardsim.Tag{{UID: "08A1B2C3", Card: cardsim.VisaCard()}},
			Delay: time.Second,
		}, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
