package topics

const (
	// Desafios
	ChallengeEvents = "challenge_events"

	// Carteira
	WithdrawalRequested = "withdrawal_requested"

	// DLQs
	ChallengeEventsDLQ     = "challenge_events_dlq"
	WithdrawalRequestedDLQ = "withdrawal_requested_dlq"
)

// Canal Redis Pub/Sub usado pelo /ws do challenge-service
const ChallengeUpdatesBroadcast = "challenge_updates_broadcast"
