// Package metrics exposes Prometheus counters and gauges for auth and messaging.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and the realtime hub report into.
type Recorder interface {
	RecordLogin(result string)
	RecordOTPIssued(reason string)
	RecordOTPValidation(result string)
	RecordMessageSent()
	RecordRelay(event string, delivered int)
	RecordDrop(event string)
	SetConnections(n int)
	SetRooms(n int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	logins        *prometheus.CounterVec
	otpIssued     *prometheus.CounterVec
	otpValidation *prometheus.CounterVec
	messagesSent  prometheus.Counter
	relays        *prometheus.CounterVec
	relayTargets  *prometheus.CounterVec
	drops         *prometheus.CounterVec
	connections   prometheus.Gauge
	rooms         prometheus.Gauge
}

// NewCollector builds a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowsync_auth_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowsync_otp_issued_total",
			Help: "One-time codes issued by reason",
		}, []string{"reason"}),
		otpValidation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowsync_otp_validations_total",
			Help: "One-time code validations by result",
		}, []string{"result"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glowsync_messages_sent_total",
			Help: "Messages persisted",
		}),
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowsync_realtime_relays_total",
			Help: "Realtime relay operations by event",
		}, []string{"event"}),
		relayTargets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowsync_realtime_deliveries_total",
			Help: "Frames queued to connections by event",
		}, []string{"event"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowsync_realtime_drops_total",
			Help: "Frames dropped because a connection buffer was full or a rate limit hit",
		}, []string{"event"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glowsync_realtime_connections",
			Help: "Currently attached realtime connections",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glowsync_realtime_rooms",
			Help: "Rooms with at least one member",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.otpIssued,
		c.otpValidation,
		c.messagesSent,
		c.relays,
		c.relayTargets,
		c.drops,
		c.connections,
		c.rooms,
	)
	return c
}

func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordOTPIssued(reason string) {
	c.otpIssued.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordOTPValidation(result string) {
	c.otpValidation.WithLabelValues(result).Inc()
}

func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

func (c *Collector) RecordRelay(event string, delivered int) {
	c.relays.WithLabelValues(event).Inc()
	c.relayTargets.WithLabelValues(event).Add(float64(delivered))
}

func (c *Collector) RecordDrop(event string) {
	c.drops.WithLabelValues(event).Inc()
}

func (c *Collector) SetConnections(n int) {
	c.connections.Set(float64(n))
}

func (c *Collector) SetRooms(n int) {
	c.rooms.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordLogin(string)         {}
func (Nop) RecordOTPIssued(string)     {}
func (Nop) RecordOTPValidation(string) {}
func (Nop) RecordMessageSent()         {}
func (Nop) RecordRelay(string, int)    {}
func (Nop) RecordDrop(string)          {}
func (Nop) SetConnections(int)         {}
func (Nop) SetRooms(int)               {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
