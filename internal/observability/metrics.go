// Package observability exposes monitor counters over HTTP for Prometheus,
// together with a liveness probe and optional pprof handlers.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"afkmon/internal/eventbus"
	"afkmon/internal/state"
)

// Exporter holds the monitor's collectors in a private registry.
type Exporter struct {
	reg *prometheus.Registry

	deployed         prometheus.Gauge
	sessionKills     prometheus.Gauge
	sessionBounties  prometheus.Gauge
	sessionMerits    prometheus.Gauge
	killsPerHour     prometheus.Gauge
	totalKills       prometheus.Gauge
	totalBounties    prometheus.Gauge
	totalMerits      prometheus.Gauge
	missionsActive   prometheus.Gauge
	missionRedirects prometheus.Gauge
	journalLines     prometheus.Gauge

	sessions      prometheus.Counter
	logged        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	sendSeconds   prometheus.Summary
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "afkmon", Name: name, Help: help})
}

func NewExporter() *Exporter {
	e := &Exporter{
		reg:              prometheus.NewRegistry(),
		deployed:         gauge("deployed", "1 while a combat session is in progress"),
		sessionKills:     gauge("session_kills", "Kills in the current session"),
		sessionBounties:  gauge("session_bounties_credits", "Bounty or bond credits in the current session"),
		sessionMerits:    gauge("session_merits", "Powerplay merits in the current session"),
		killsPerHour:     gauge("session_kills_per_hour", "Kill rate since deployment"),
		totalKills:       gauge("run_kills", "Kills since the monitor started"),
		totalBounties:    gauge("run_bounties_credits", "Credits since the monitor started"),
		totalMerits:      gauge("run_merits", "Merits since the monitor started"),
		missionsActive:   gauge("missions_active", "Tracked massacre missions"),
		missionRedirects: gauge("missions_redirected", "Missions ready to hand in"),
		journalLines:     gauge("journal_lines", "Journal lines read"),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "afkmon", Name: "sessions_total", Help: "Sessions started",
		}),
		logged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afkmon", Name: "events_logged_total", Help: "Gated notifications by category and route",
		}, []string{"category", "route"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afkmon", Name: "notifications_total", Help: "Remote deliveries by channel and status",
		}, []string{"channel", "status"}),
		sendSeconds: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "afkmon", Name: "notification_send_seconds", Help: "Remote send latency",
		}),
	}
	e.reg.MustRegister(
		e.deployed, e.sessionKills, e.sessionBounties, e.sessionMerits, e.killsPerHour,
		e.totalKills, e.totalBounties, e.totalMerits, e.missionsActive, e.missionRedirects,
		e.journalLines, e.sessions, e.logged, e.notifications, e.sendSeconds,
	)
	return e
}

// Registry is the gatherer served on /metrics.
func (e *Exporter) Registry() *prometheus.Registry { return e.reg }

// Observe copies a tracker snapshot into the gauges.
func (e *Exporter) Observe(s state.Snapshot) {
	if s.Deployed {
		e.deployed.Set(1)
	} else {
		e.deployed.Set(0)
	}
	e.sessionKills.Set(float64(s.SessionKills))
	e.sessionBounties.Set(float64(s.SessionBounties))
	e.sessionMerits.Set(float64(s.SessionMerits))
	e.killsPerHour.Set(s.KillsPerHour)
	e.totalKills.Set(float64(s.TotalKills))
	e.totalBounties.Set(float64(s.TotalBounties))
	e.totalMerits.Set(float64(s.TotalMerits))
	e.missionsActive.Set(float64(s.MissionsActive))
	e.missionRedirects.Set(float64(s.MissionRedirects))
	e.journalLines.Set(float64(s.Lines))
}

// Consume counts bus events until ctx ends or the subscription closes.
func (e *Exporter) Consume(ctx context.Context, events <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.count(ev)
		}
	}
}

func (e *Exporter) count(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.SessionStarted:
		e.sessions.Inc()
	case eventbus.Logged:
		if d, ok := ev.Data.(eventbus.LoggedEvent); ok {
			route := "local"
			if d.Remote {
				route = "remote"
			}
			e.logged.WithLabelValues(d.Category, route).Inc()
		}
	case eventbus.NotifySent, eventbus.NotifyFailed, eventbus.NotifyDropped:
		d, _ := ev.Data.(eventbus.Delivery)
		status := map[string]string{
			eventbus.NotifySent:    "ok",
			eventbus.NotifyFailed:  "error",
			eventbus.NotifyDropped: "dropped",
		}[ev.Type]
		e.notifications.WithLabelValues(d.Channel, status).Inc()
		if ev.Type == eventbus.NotifySent {
			e.sendSeconds.Observe(d.Took.Seconds())
		}
	}
}
