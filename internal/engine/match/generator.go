package match

import (
	"fmt"
	"math/rand"
)

// EventSource produz os lances de um minuto simulado a partir do estado
// corrente. O Simulator não conhece a implementação concreta.
type EventSource interface {
	Generate(st *State, minute int) []Event
}

// Generator é a implementação estocástica de EventSource. A fonte de
// aleatoriedade é injetada: com a mesma seed e a mesma sequência de estados,
// a sequência de lances é idêntica.
type Generator struct {
	params Params
	rng    *rand.Rand
}

func NewGenerator(params Params, rng *rand.Rand) *Generator {
	return &Generator{params: params, rng: rng}
}

// Generate devolve zero ou mais lances para o minuto. A ordem de consumo do
// rng é fixa (gol casa, gol fora, cartões, escanteio, finalização,
// substituição) para manter o determinismo por seed.
func (g *Generator) Generate(st *State, minute int) []Event {
	var out []Event

	if ev, ok := g.maybeGoal(st, minute, SideHome); ok {
		out = append(out, ev)
	}
	if ev, ok := g.maybeGoal(st, minute, SideAway); ok {
		out = append(out, ev)
	}
	if ev, ok := g.maybeCard(st, minute, SideHome); ok {
		out = append(out, ev)
	}
	if ev, ok := g.maybeCard(st, minute, SideAway); ok {
		out = append(out, ev)
	}
	if ev, ok := g.maybeMinor(st, minute, EventCorner, g.params.CornerRate); ok {
		out = append(out, ev)
	}
	if ev, ok := g.maybeMinor(st, minute, EventShot, g.params.ShotRate); ok {
		out = append(out, ev)
	}
	if minute > g.params.RegularTime/2 {
		if ev, ok := g.maybeMinor(st, minute, EventSubstitution, g.params.SubstitutionRate); ok {
			out = append(out, ev)
		}
	}

	return out
}

// maybeGoal sorteia um gol do lado dado. A probabilidade combina ataque do
// time, momentum corrente, minutos-chave e clássicos.
func (g *Generator) maybeGoal(st *State, minute int, side Side) (Event, bool) {
	rating := st.Rating(side)
	momentum := st.Momentum(side)

	p := g.params.BaseGoalRate *
		(float64(rating.Attack) / g.params.LeagueAvgAttack) *
		(momentum / 50.0)
	if keyMinutes[minute] {
		p *= g.params.KeyMinuteBoost
	}
	if st.Derby {
		p *= g.params.DerbyBoost
	}

	if g.rng.Float64() >= p {
		return Event{}, false
	}
	return Event{
		Minute: minute,
		Type:   EventGoal,
		Team:   side,
		Player: g.player(),
	}, true
}

// maybeCard sorteia um cartão; a probabilidade é inversa à disciplina.
func (g *Generator) maybeCard(st *State, minute int, side Side) (Event, bool) {
	rating := st.Rating(side)
	discipline := rating.Discipline
	if discipline < 1 {
		discipline = 1
	}

	p := g.params.BaseCardRate * (g.params.LeagueAvgDiscip / float64(discipline))
	if g.rng.Float64() >= p {
		return Event{}, false
	}

	detail := CardYellow
	if g.rng.Float64() < g.params.RedCardShare {
		detail = CardRed
	}
	return Event{
		Minute: minute,
		Type:   EventCard,
		Team:   side,
		Player: g.player(),
		Detail: detail,
	}, true
}

// maybeMinor sorteia lances de baixo impacto (escanteio, finalização,
// substituição). Não alteram placar nem odds, só estatística. O lado é
// atribuído proporcionalmente ao momentum.
func (g *Generator) maybeMinor(st *State, minute int, typ EventType, rate float64) (Event, bool) {
	if g.rng.Float64() >= rate {
		return Event{}, false
	}

	side := SideAway
	total := st.HomeMomentum + st.AwayMomentum
	if total <= 0 {
		total = 1
	}
	if g.rng.Float64() < st.HomeMomentum/total {
		side = SideHome
	}
	return Event{
		Minute: minute,
		Type:   typ,
		Team:   side,
	}, true
}

// player devolve um rótulo de jogador (número de camisa).
func (g *Generator) player() string {
	return fmt.Sprintf("#%d", 1+g.rng.Intn(11))
}
