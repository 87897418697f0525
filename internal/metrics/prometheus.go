package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "hl_action_kit"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry         *prometheus.Registry
	actionsSigned    prometheus.Counter
	signingFailed    prometheus.Counter
	actionsSubmitted prometheus.Counter
	submitFailed     prometheus.Counter
	infoRequests     prometheus.Counter
	infoFailed       prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	actionsSigned := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "actions_signed_total",
		Help:      "Total number of actions signed.",
	})
	signingFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "signing_failed_total",
		Help:      "Total number of rejected or failed signing requests.",
	})
	actionsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "actions_submitted_total",
		Help:      "Total number of actions accepted by the exchange.",
	})
	submitFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "submit_failed_total",
		Help:      "Total number of actions the exchange rejected or never answered.",
	})
	infoRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "info_requests_total",
		Help:      "Total number of info queries sent.",
	})
	infoFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "info_failed_total",
		Help:      "Total number of failed info queries.",
	})

	registry.MustRegister(actionsSigned, signingFailed, actionsSubmitted, submitFailed, infoRequests, infoFailed)

	m := &Metrics{
		ActionsSigned:    promCounter{actionsSigned},
		SigningFailed:    promCounter{signingFailed},
		ActionsSubmitted: promCounter{actionsSubmitted},
		SubmitFailed:     promCounter{submitFailed},
		InfoRequests:     promCounter{infoRequests},
		InfoFailed:       promCounter{infoFailed},
	}

	return &Prometheus{
		Metrics:          m,
		registry:         registry,
		actionsSigned:    actionsSigned,
		signingFailed:    signingFailed,
		actionsSubmitted: actionsSubmitted,
		submitFailed:     submitFailed,
		infoRequests:     infoRequests,
		infoFailed:       infoFailed,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
