// Package metrics declares mrtkit-ingest's prometheus collectors and
// registers them as a single group, the way the teacher's metrics package
// did for its own RIB-ingestion concerns.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SourceMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtkit_source_messages_total",
			Help: "Total raw messages consumed from a source (kafka, ris_live).",
		},
		[]string{"source", "topic"},
	)

	DecodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrtkit_decode_duration_seconds",
			Help:    "Time to decode one raw record into elems, by decoder stage.",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"stage"},
	)

	ElemsProducedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtkit_elems_produced_total",
			Help: "BgpElems produced, by elem type.",
		},
		[]string{"elem_type"},
	)

	ElemsFilteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtkit_elems_filtered_total",
			Help: "Elems dropped by the configured filter before output.",
		},
		[]string{},
	)

	ParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtkit_parse_errors_total",
			Help: "Parse failures by decoder stage and reason.",
		},
		[]string{"stage", "reason"},
	)

	DBWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrtkit_db_write_duration_seconds",
			Help:    "Postgres write latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"op"},
	)

	DBRowsAffectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtkit_db_rows_affected_total",
			Help: "Postgres rows written or deleted.",
		},
		[]string{"table", "op"},
	)

	OutputMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtkit_output_messages_total",
			Help: "Decoded elems published to the output topic.",
		},
		[]string{"topic"},
	)

	LastMsgTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mrtkit_last_msg_timestamp_seconds",
			Help: "Unix timestamp of the last processed message, by source.",
		},
		[]string{"source"},
	)

	BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrtkit_batch_size",
			Help:    "Batch sizes flushed to an output sink.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000, 5000},
		},
		[]string{"sink"},
	)

	RoutesPurgedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtkit_routes_purged_total",
			Help: "Rows purged from route_history by the retention job.",
		},
		[]string{"reason"},
	)
)

func Register() {
	for _, c := range []prometheus.Collector{
		SourceMessagesTotal,
		DecodeDuration,
		ElemsProducedTotal,
		ElemsFilteredTotal,
		ParseErrorsTotal,
		DBWriteDuration,
		DBRowsAffectedTotal,
		OutputMessagesTotal,
		LastMsgTimestamp,
		BatchSize,
		RoutesPurgedTotal,
	} {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
