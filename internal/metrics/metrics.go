package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	LinesTotal          *prometheus.CounterVec
	ActivityTotal       *prometheus.CounterVec
	EventsTotal         *prometheus.CounterVec
	DispatchDropped     *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	DispatchWorker      *prometheus.GaugeVec
	DispatchInFlight    *prometheus.GaugeVec
	HarvesterPlots      *prometheus.GaugeVec
	HarvesterSearchTime *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		LinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "log_lines_total",
			Help: "total number of log lines consumed",
		}, []string{"source"}),
		ActivityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_activity_total",
			Help: "total number of parsed harvester activity messages",
		}, []string{"source"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_total",
			Help: "total number of events produced by checkers",
		}, []string{"type", "service", "priority"}),
		DispatchDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_dropped_total",
			Help: "total number of events dropped by the dispatcher",
		}, []string{"reason"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "total number of notification deliveries",
		}, []string{"notifier", "status"}),
		DispatchWorker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatch_worker_count",
			Help: "number of dispatcher workers",
		}, []string{"type"}),
		DispatchInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatch_in_flight_events",
			Help: "number of in flight events per dispatcher worker",
		}, []string{"type", "worker"}),
		HarvesterPlots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harvester_plots",
			Help: "total plot count last reported by the harvester",
		}, []string{"source"}),
		HarvesterSearchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_search_seconds",
			Help:    "time the harvester took to look up plots for a challenge",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"source"}),
	}

	metrics.Enable(reg)
	return metrics
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LinesTotal,
		m.ActivityTotal,
		m.EventsTotal,
		m.DispatchDropped,
		m.NotificationsTotal,
		m.DispatchWorker,
		m.DispatchInFlight,
		m.HarvesterPlots,
		m.HarvesterSearchTime,
	}
}

func (m *Metrics) Enable(reg prometheus.Registerer) {
	for _, c := range m.collectors() {
		reg.MustRegister(c)
	}
}

func (m *Metrics) Disable(reg prometheus.Registerer) {
	for _, c := range m.collectors() {
		reg.Unregister(c)
	}
}
