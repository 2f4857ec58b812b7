// Package telemetry exposes Prometheus metrics and a health endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Stanzas = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadbot_stanzas_total",
		Help: "Inbound stanzas by server and kind.",
	}, []string{"server", "kind"})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadbot_commands_total",
		Help: "Chat commands executed.",
	}, []string{"command"})

	Announcements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadbot_announcements_total",
		Help: "Activity announcements broadcast.",
	}, []string{"category"})

	MotdDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadbot_motd_deliveries_total",
		Help: "MOTD messages delivered to joining users.",
	}, []string{"server"})

	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadbot_reconnects_total",
		Help: "Connection restarts by server and reason.",
	}, []string{"server", "reason"})

	PendingMotd = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "squadbot_pending_motd",
		Help: "Users waiting in the MOTD delivery queue.",
	}, []string{"server"})
)
