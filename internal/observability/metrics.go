package observability

import "github.com/prometheus/client_golang/prometheus"

// Ledger metrics. Labels are bounded: source is one of chat/connect4/tictactoe,
// scope one of user/user_daily/global.
var (
	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_points_awarded_total",
			Help: "Points credited to users.",
		},
		[]string{"source"},
	)

	AwardsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_awards_rejected_total",
			Help: "Awards blocked by a quota.",
		},
		[]string{"source", "scope"},
	)

	Promotions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_promotions_total",
			Help: "Users promoted to the claim workflow, by delivery resource.",
		},
		[]string{"resource"},
	)

	Claims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_claims_total",
			Help: "Claim submissions by outcome.",
		},
		[]string{"outcome"},
	)

	PendingClaims = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memebot_pending_claims",
			Help: "Claim resources waiting for submission or expiry.",
		},
	)

	GamesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebot_games_finished_total",
			Help: "Finished game sessions by kind and final state.",
		},
		[]string{"game", "state"},
	)
)

func init() {
	prometheus.MustRegister(PointsAwarded, AwardsRejected, Promotions, Claims, PendingClaims, GamesFinished)
}
