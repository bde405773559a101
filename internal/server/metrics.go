package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	replySourceAPI      = "api"
	replySourceFallback = "fallback"
)

// appMetrics registers on a private registry, one per App.
type appMetrics struct {
	registry               *prometheus.Registry
	chatReplies            *prometheus.CounterVec
	profileUpdateFailures  prometheus.Counter
	completionSeconds      prometheus.Histogram
	conversationPersistErr prometheus.Counter
}

func newAppMetrics() *appMetrics {
	registry := prometheus.NewRegistry()
	m := &appMetrics{
		registry: registry,
		chatReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "choti_chat_replies_total",
			Help: "Chat replies by source (api or fallback).",
		}, []string{"source"}),
		profileUpdateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "choti_profile_update_failures_total",
			Help: "Profile updates skipped because loading, updating or saving failed.",
		}),
		completionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "choti_completion_seconds",
			Help:    "Latency of completion API calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		conversationPersistErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "choti_conversation_persist_failures_total",
			Help: "Chat turns whose messages could not be written to the conversation store.",
		}),
	}
	registry.MustRegister(
		m.chatReplies,
		m.profileUpdateFailures,
		m.completionSeconds,
		m.conversationPersistErr,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *appMetrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
