package events

import "time"

// Evento publicado pelo wallet-service quando um saque é debitado.
// O payout-worker consome e chama o gateway de pagamento.
type WithdrawalRequested struct {
	PayoutID      string    `json:"payoutId"`
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	Amount        string    `json:"amount"` // decimal em string
	Destination   string    `json:"destination"`
	RequestedAt   time.Time `json:"requestedAt"`
}
