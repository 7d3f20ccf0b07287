package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, endpoint and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "localllm",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ChatTurnsTotal counts completed chat turns per model.
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "server",
			Name:      "chat_turns_total",
			Help:      "Total completed chat turns",
		},
		[]string{"model"},
	)

	// UpstreamErrorsTotal counts failed outbound LLM calls.
	UpstreamErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "server",
			Name:      "upstream_errors_total",
			Help:      "Total upstream LLM call failures",
		},
	)

	// ConversationsCreatedTotal counts lazily created conversations.
	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "server",
			Name:      "conversations_created_total",
			Help:      "Total conversations created",
		},
	)

	// TokensEstimatedTotal counts estimated tokens by role. The estimate is
	// the chars/4 heuristic, bookkeeping only.
	TokensEstimatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localllm",
			Subsystem: "server",
			Name:      "tokens_estimated_total",
			Help:      "Total estimated tokens processed",
		},
		[]string{"role"},
	)
)

// RecordRequest records one finished HTTP request.
func RecordRequest(method, endpoint, status string, durationSeconds float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordChatTurn records one completed chat turn.
func RecordChatTurn(model string) {
	ChatTurnsTotal.WithLabelValues(model).Inc()
}

// RecordUpstreamError records one failed outbound LLM call.
func RecordUpstreamError() {
	UpstreamErrorsTotal.Inc()
}

// RecordConversationCreated records one lazily created conversation.
func RecordConversationCreated() {
	ConversationsCreatedTotal.Inc()
}

// RecordEstimatedTokens records approximate token usage for a role.
func RecordEstimatedTokens(role string, tokens int) {
	TokensEstimatedTotal.WithLabelValues(role).Add(float64(tokens))
}
