package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Counters are constructed at package load so they are always safe to Inc,
// and registered explicitly once at startup via InitCustomMetrics.
var (
	TokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_tokens_issued_total",
		Help: "Total number of gateway access tokens issued.",
	})
	TokensRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_tokens_revoked_total",
		Help: "Total number of gateway access tokens revoked.",
	})
	TokenVerificationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_token_verifications_total",
		Help: "Total number of successful token verifications.",
	})
	TokenVerifyFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_token_verify_failures_total",
		Help: "Total number of failed token verifications.",
	})
	RefreshesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_oauth_refreshes_total",
		Help: "Total number of successful provider token refreshes.",
	})
	RefreshRateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_oauth_refresh_rate_limited_total",
		Help: "Total number of refresh attempts rejected by the rate limiter.",
	})
	RefreshFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_oauth_refresh_failures_total",
		Help: "Total number of failed provider token refreshes.",
	})
	BundlesPackagedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_bundles_packaged_total",
		Help: "Total number of token context bundles packaged.",
	})
	ExecutionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_sandbox_executions_total",
		Help: "Total number of sandboxed executions launched.",
	})
	ExecutionTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcpgate_sandbox_execution_timeouts_total",
		Help: "Total number of sandboxed executions killed on deadline.",
	})
)

// InitCustomMetrics registers the gateway's Prometheus metrics.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	for _, c := range []prometheus.Collector{
		TokensIssuedTotal, TokensRevokedTotal,
		TokenVerificationsTotal, TokenVerifyFailuresTotal,
		RefreshesTotal, RefreshRateLimitedTotal, RefreshFailuresTotal,
		BundlesPackagedTotal, ExecutionsTotal, ExecutionTimeoutsTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
