package ble

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
  advertisementsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: "ble",
    Name: "advertisements_received_total",
    Help: "Number of BLE advertisements received while scanning.",
  })

  scansCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: "ble",
    Name: "scans_total",
    Help: "Number of BLE scans started.",
  })

  failedScansCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: "ble",
    Name: "scans_failed_total",
    Help: "Number of BLE scans which ended with an error.",
  })
)

func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
  return ble.WithSigHandler(ctx, cancel)
}

// Perform an active or passive scan and pass every advertisement found to the
// handler, duplicates included, until the context is done. A canceled or
// expired context is not reported as an error.
func (h *Handle) ScanAll(ctx context.Context, onAdvertisement func(Advertisement)) error {
  scansCounter.Inc()

  err := h.dev.Scan(ctx, true, func(a Advertisement) {
    advertisementsCounter.Inc()

    log.Trace().
      Str("Addr", a.Addr().String()).
      Int("RSSI", a.RSSI()).
      Hex("ManufacturerData", a.ManufacturerData()).
      Msg("ble: received advertisement")

    onAdvertisement(a)
  })

  if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
    return nil
  }

  if err != nil {
    failedScansCounter.Inc()
    return fmt.Errorf("failed to initiate scan: %w", err)
  }

  return nil
}
