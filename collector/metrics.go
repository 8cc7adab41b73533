package collector

import (
  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-rapt-exporter/device/rapt"
)

var (
  framesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
    Namespace: "rapt",
    Name: "frames_received_total",
    Help: "Number of frames received from RAPT devices, by frame kind.",
  }, []string{"kind"})

  duplicateFramesCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: "rapt",
    Name: "frames_duplicate_total",
    Help: "Number of scanned frames dropped for repeating the previous payload.",
  })

  decodeErrorsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: "rapt",
    Name: "frame_decode_errors_total",
    Help: "Number of frames which could not be decoded.",
  })

  droppedReadingsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Namespace: "rapt",
    Name: "readings_dropped_total",
    Help: "Number of decoded readings which could not be applied to a session.",
  })

  alertsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
    Namespace: "rapt",
    Name: "alerts_raised_total",
    Help: "Number of alerts raised, by alert type.",
  }, []string{"type"})
)

func RegisterMetrics(reg prometheus.Registerer) {
  reg.MustRegister(
    framesCounter,
    duplicateFramesCounter,
    decodeErrorsCounter,
    droppedReadingsCounter,
    alertsCounter,
  )
}

// countFrame classifies a frame as received from any transport, before it is
// deduplicated or decoded.
func countFrame(vendorID uint16, payload []byte) rapt.FrameKind {
  kind := rapt.Classify(vendorID, payload)
  framesCounter.WithLabelValues(kind.String()).Inc()

  return kind
}
