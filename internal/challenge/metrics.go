package challenge

import "github.com/prometheus/client_golang/prometheus"

// Metrics agrupa os contadores do motor de liquidação
type Metrics struct {
	Settlements   *prometheus.CounterVec
	Conflicts     *prometheus.CounterVec
	Forfeits      prometheus.Counter
	Reversals     prometheus.Counter
	Verifications *prometheus.CounterVec
	Unresolved    prometheus.Counter
}

// NewMetrics cria os contadores e registra em reg quando não for nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "challenge_settlements_total",
			Help: "desafios liquidados por caminho e resultado",
		}, []string{"path", "outcome"}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "challenge_conflicts_total",
			Help: "conflitos detectados por tipo de evidência",
		}, []string{"kind"}),
		Forfeits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "challenge_forfeits_total",
			Help: "vitórias por W.O. aplicadas pelo supervisor de prazos",
		}),
		Reversals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "challenge_reversals_total",
			Help: "estornos admin_adjustment emitidos por disputas",
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "challenge_verification_calls_total",
			Help: "chamadas ao serviço de verificação por resultado",
		}, []string{"result"}),
		Unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "challenge_winner_unresolved_total",
			Help: "liquidações bloqueadas por vencedor não resolvido",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Settlements, m.Conflicts, m.Forfeits, m.Reversals, m.Verifications, m.Unresolved)
	}
	return m
}
