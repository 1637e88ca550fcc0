package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// MatchID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | unsubscribe | ping
	MatchID string `json:"matchId"` // requerido em subscribe/unsubscribe
}

// MatchUpdate representa uma atualização (tick, odds ou liquidação) enviada
// para clientes WebSocket
type MatchUpdate struct {
	MatchID string      `json:"matchId"`
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}
