package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors the clinic server exports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	appointmentsTotal   *prometheus.CounterVec
	slotConflictsTotal  prometheus.Counter
	emrReviewsTotal     *prometheus.CounterVec
	emrUploadsTotal     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		appointmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_appointment_transitions_total",
				Help: "Appointment lifecycle events by action",
			},
			[]string{"action"},
		),
		slotConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clinic_slot_conflicts_total",
				Help: "Booking or reschedule attempts rejected because the doctor slot was taken",
			},
		),
		emrReviewsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_emr_reviews_total",
				Help: "EMR access request decisions",
			},
			[]string{"decision"},
		),
		emrUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_emr_uploads_total",
				Help: "EMR file uploads by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.appointmentsTotal,
		m.slotConflictsTotal,
		m.emrReviewsTotal,
		m.emrUploadsTotal,
	)
	return m
}

// AppointmentEvent counts a lifecycle action such as "booked" or "cancelled".
func (m *Metrics) AppointmentEvent(action string) {
	if m == nil {
		return
	}
	m.appointmentsTotal.WithLabelValues(action).Inc()
}

// SlotConflict counts a rejected booking.
func (m *Metrics) SlotConflict() {
	if m == nil {
		return
	}
	m.slotConflictsTotal.Inc()
}

// EMRReview counts a review decision.
func (m *Metrics) EMRReview(decision string) {
	if m == nil {
		return
	}
	m.emrReviewsTotal.WithLabelValues(decision).Inc()
}

// EMRUpload counts an upload attempt by result ("stored", "rejected").
func (m *Metrics) EMRUpload(result string) {
	if m == nil {
		return
	}
	m.emrUploadsTotal.WithLabelValues(result).Inc()
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
