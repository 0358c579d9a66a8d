package monitoring

import (
	"net/http"

	"h2hServer/market"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors. Observe and RecordOperation plug into
// market.Program as an observer and a recorder.
type Metrics struct {
	registry *prometheus.Registry

	HttpRequests  *prometheus.CounterVec
	Operations    *prometheus.CounterVec
	OracleSamples *prometheus.CounterVec
	VaultBalance  prometheus.Gauge
	LatestPrice   prometheus.Gauge
	PriceCount    prometheus.Gauge
	GamesCreated  prometheus.Counter
	GamesByStatus *prometheus.GaugeVec
	Payouts       prometheus.Counter
	WSClients     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HttpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint"},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_operations_total",
				Help: "Market operations by outcome code",
			},
			[]string{"op", "code"},
		),
		OracleSamples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_samples_total",
				Help: "Price samples read by the feeder by result",
			},
			[]string{"result"},
		),
		VaultBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "market_vault_balance",
			Help: "Tokens held in escrow by the vault",
		}),
		LatestPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "market_latest_price",
			Help: "Most recent price in the feed, unscaled",
		}),
		PriceCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "market_prices",
			Help: "Number of prices in the feed",
		}),
		GamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "market_games_created_total",
			Help: "Total games created",
		}),
		GamesByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "market_games",
				Help: "Games seen by this process by lifecycle status",
			},
			[]string{"status"},
		),
		Payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "market_payouts_total",
			Help: "Total tokens paid out to winners",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Connected websocket clients",
		}),
	}

	m.registry.MustRegister(
		m.HttpRequests,
		m.Operations,
		m.OracleSamples,
		m.VaultBalance,
		m.LatestPrice,
		m.PriceCount,
		m.GamesCreated,
		m.GamesByStatus,
		m.Payouts,
		m.WSClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation counts one market operation. Errors without a program code
// are counted as "internal".
func (m *Metrics) RecordOperation(op string, err error) {
	code := "ok"
	if err != nil {
		code = market.Code(err)
		if code == "" {
			code = "internal"
		}
	}
	m.Operations.WithLabelValues(op, code).Inc()
}

func (m *Metrics) Observe(ev market.Event) {
	switch ev.Type {
	case market.EventPricesInitialized:
		m.LatestPrice.Set(float64(ev.Price))
		m.PriceCount.Set(1)
	case market.EventPriceAdded:
		m.LatestPrice.Set(float64(ev.Price))
		if ev.PriceIndex != nil {
			m.PriceCount.Set(float64(*ev.PriceIndex) + 1)
		}
	case market.EventGameCreated:
		m.GamesCreated.Inc()
		m.GamesByStatus.WithLabelValues(string(market.StatusOpen)).Inc()
	case market.EventGameJoined:
		m.GamesByStatus.WithLabelValues(string(market.StatusOpen)).Dec()
		m.GamesByStatus.WithLabelValues(string(market.StatusJoined)).Inc()
	case market.EventGameWithdrawn:
		m.GamesByStatus.WithLabelValues(string(market.StatusOpen)).Dec()
		m.GamesByStatus.WithLabelValues(string(market.StatusWithdrawn)).Inc()
	case market.EventGameSettled:
		m.GamesByStatus.WithLabelValues(string(market.StatusJoined)).Dec()
		m.GamesByStatus.WithLabelValues(string(market.StatusSettled)).Inc()
		m.Payouts.Add(float64(ev.Amount))
	}

	switch ev.Type {
	case market.EventVaultInitialized, market.EventGameCreated, market.EventGameJoined,
		market.EventGameWithdrawn, market.EventGameSettled:
		m.VaultBalance.Set(float64(ev.VaultBalance))
	}
}

// Middleware counts requests per route pattern.
func (m *Metrics) Middleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.HttpRequests.WithLabelValues(r.Method, endpoint).Inc()
		next(w, r)
	}
}
