package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scans_total", Help: "Completed market scan cycles"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signal scores emitted per engine"},
		[]string{"type"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_total", Help: "Paper trades by lifecycle event"},
		[]string{"event"}, // 'opened' | 'closed'
	)
	RiskRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "risk_rejections_total", Help: "Trades rejected by the risk gate"},
		[]string{"rule"},
	)
	WeightAdjustmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "weight_adjustments_total", Help: "Agent weight adjustments per category"},
		[]string{"category"},
	)
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Price ticks received per market"},
		[]string{"market"},
	)
	Balance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "paper_balance_dollars", Help: "Current paper trading balance"},
	)
)

func init() {
	prometheus.MustRegister(ScansTotal, SignalsTotal, TradesTotal, RiskRejectionsTotal, WeightAdjustmentsTotal, TicksTotal, Balance)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
