package match

// Params agrupa as constantes de tuning da simulação. Os valores default são
// calibrados empiricamente; os testes só dependem dos limites e da
// monotonicidade, então podem ser ajustados sem quebrar contrato.
type Params struct {
	// Geração de lances
	BaseGoalRate     float64 // prob. base de gol por minuto, por time
	LeagueAvgAttack  float64 // ataque médio da liga, normaliza o rating
	LeagueAvgDiscip  float64 // disciplina média da liga
	KeyMinuteBoost   float64 // multiplicador em minutos-chave
	DerbyBoost       float64 // multiplicador em clássicos
	BaseCardRate     float64 // prob. base de cartão por minuto, por time
	RedCardShare     float64 // fração de cartões que são vermelhos
	CornerRate       float64 // prob. de escanteio por minuto
	ShotRate         float64 // prob. de finalização por minuto
	SubstitutionRate float64 // prob. de substituição por minuto (só após o intervalo)

	// Momentum
	GoalMomentumDelta float64 // quanto um gol desloca o momentum
	MomentumMax       float64 // teto de quem marca
	MomentumMin       float64 // piso de quem sofre
	MomentumBaseline  float64 // valor de repouso
	MomentumDecay     float64 // fração de retorno ao repouso por tick sem gol

	// Tempo de jogo
	RegularTime int // minutos regulamentares
	MaxStoppage int // acréscimos máximos sorteados
}

// DefaultParams devolve o tuning padrão da simulação.
func DefaultParams() Params {
	return Params{
		BaseGoalRate:     0.014,
		LeagueAvgAttack:  70,
		LeagueAvgDiscip:  70,
		KeyMinuteBoost:   1.35,
		DerbyBoost:       1.2,
		BaseCardRate:     0.02,
		RedCardShare:     0.10,
		CornerRate:       0.10,
		ShotRate:         0.14,
		SubstitutionRate: 0.02,

		GoalMomentumDelta: 15,
		MomentumMax:       80,
		MomentumMin:       20,
		MomentumBaseline:  50,
		MomentumDecay:     0.05,

		RegularTime: 90,
		MaxStoppage: 5,
	}
}

// Minutos em que a probabilidade de gol é amplificada.
var keyMinutes = map[int]bool{
	15: true, 30: true, 45: true, 60: true, 75: true, 85: true,
}
