package ws

// ClientMsg é a mensagem recebida do cliente: subscribe | unsubscribe | ping
type ClientMsg struct {
	Type        string `json:"type"`
	ChallengeID string `json:"challengeId"`
}

// Update é o que o hub envia aos inscritos de um desafio
type Update struct {
	ChallengeID string `json:"challengeId"`
	Payload     any    `json:"payload"`
}
