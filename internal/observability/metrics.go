package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomgate",
		Name:      "frames_captured_total",
		Help:      "Total number of frames read from the camera",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomgate",
		Name:      "frames_dropped_total",
		Help:      "Frames discarded because a match was already in flight",
	})

	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomgate",
		Name:      "verdicts_total",
		Help:      "Per-frame recognition verdicts by kind",
	}, []string{"kind"})

	AnalyzerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomgate",
		Name:      "analyzer_errors_total",
		Help:      "Face detection/embedding failures",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roomgate",
		Name:      "inference_duration_seconds",
		Help:      "Duration of recognition stages",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"stage"})

	Attempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomgate",
		Name:      "attempts_total",
		Help:      "Terminal outcomes of authorization attempts",
	}, []string{"result", "reason"})

	AttendanceUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomgate",
		Name:      "attendance_updates_total",
		Help:      "Last-attendance timestamp updates issued",
	})

	GalleryVectors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomgate",
		Name:      "gallery_vectors",
		Help:      "Number of enrolled embedding vectors loaded",
	})

	GalleryPersons = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomgate",
		Name:      "gallery_persons",
		Help:      "Number of persons with an embedding set loaded",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roomgate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomgate",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
