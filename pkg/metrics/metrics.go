package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BookingsCreated counts bookings created, by service modality
var BookingsCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conecta_bookings_created_total",
		Help: "Total number of bookings created",
	},
	[]string{"modality"},
)

// BookingsByStatus counts booking status transitions
var BookingsByStatus = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conecta_booking_transitions_total",
		Help: "Total number of booking status transitions",
	},
	[]string{"status"},
)

// PaymentsProcessed counts payment outcomes by gateway
var PaymentsProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conecta_payments_processed_total",
		Help: "Total number of payments processed",
	},
	[]string{"gateway", "status"},
)

// SearchLatency records latency distribution for professional searches
var SearchLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "conecta_search_latency_seconds",
		Help:    "Latency in seconds to run a professional search",
		Buckets: prometheus.DefBuckets,
	},
)

// ReviewsCreated counts reviews by star rating
var ReviewsCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conecta_reviews_created_total",
		Help: "Total number of reviews created",
	},
	[]string{"rating"},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conecta_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conecta_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conecta_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(BookingsCreated, BookingsByStatus, PaymentsProcessed, SearchLatency, ReviewsCreated)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
