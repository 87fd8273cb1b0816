package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the daemon's prometheus instruments. All are registered
// eagerly at construction, the way the teacher registers its gauges.
type Metrics struct {
	OpenSessions         prometheus.Gauge
	RetransmitQueueDepth prometheus.Gauge
	PDUsReceived         *prometheus.CounterVec
	PDUsSent             *prometheus.CounterVec
	ParseErrors          prometheus.Counter
}

// NewMetrics registers and returns the engine's metric set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OpenSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lsoe_open_sessions",
			Help: "Number of neighbor sessions currently in the Open state.",
		}),
		RetransmitQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lsoe_retransmit_queue_depth",
			Help: "Total number of ACKed PDUs awaiting acknowledgement across all sessions.",
		}),
		PDUsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lsoe_pdus_received_total",
			Help: "PDUs received, by type.",
		}, []string{"pdu_type"}),
		PDUsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lsoe_pdus_sent_total",
			Help: "PDUs sent, by type.",
		}, []string{"pdu_type"}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "lsoe_parse_errors_total",
			Help: "Received PDUs too short to read a type from. PDUs that fail full parsing in their session are not counted.",
		}),
	}
}
