package match

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotScheduled = errors.New("match is not scheduled")
)

// Update é a unidade emitida pelo Simulator a cada tick. Consumidores externos
// (broadcast, persistência) leem do canal; a cadência da simulação não espera
// por I/O deles.
type Update struct {
	State    State   // cópia do estado após o tick
	Applied  []Event // lances aplicados neste tick
	Finished bool    // partida chegou a FINISHED neste tick
	Failed   bool    // partida chegou a FAILED neste tick
}

// Simulator conduz uma única partida: um tick por intervalo fixo de relógio,
// cada tick avançando um minuto simulado. O State é de posse exclusiva do
// Simulator enquanto LIVE; leituras externas recebem snapshots.
type Simulator struct {
	log      *zap.Logger
	params   Params
	src      EventSource
	rng      *rand.Rand
	interval time.Duration
	updates  chan<- Update

	mu sync.RWMutex
	st *State

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewSimulator monta o simulador de uma partida SCHEDULED. O rng é usado
// apenas para sortear os acréscimos; os lances vêm do EventSource.
func NewSimulator(log *zap.Logger, params Params, st *State, src EventSource, rng *rand.Rand, interval time.Duration, updates chan<- Update) *Simulator {
	return &Simulator{
		log:      log,
		params:   params,
		src:      src,
		rng:      rng,
		interval: interval,
		updates:  updates,
		st:       st,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start promove SCHEDULED -> LIVE, sorteia os acréscimos e dispara o loop de
// ticks em goroutine própria.
func (s *Simulator) Start() error {
	s.mu.Lock()
	if s.st.Status != StatusScheduled {
		s.mu.Unlock()
		return ErrNotScheduled
	}
	s.st.Status = StatusLive
	s.st.Stoppage = 1 + s.rng.Intn(s.params.MaxStoppage)
	s.st.UpdatedAt = time.Now().UTC()
	s.started = true
	s.mu.Unlock()

	go s.run()
	return nil
}

// Stop interrompe o agendamento de novos ticks. Seguro de chamar concorrente
// com um tick em andamento: o tick corrente termina, nenhum outro é agendado.
// No-op em partida SCHEDULED ou já terminal.
func (s *Simulator) Stop() {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return // nada agendado ainda; um Start futuro precisa funcionar
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Done fecha quando o loop de ticks encerrou. Nunca fecha se a partida não
// chegou a ser iniciada.
func (s *Simulator) Done() <-chan struct{} { return s.done }

// State devolve um snapshot do estado corrente.
func (s *Simulator) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Snapshot()
}

func (s *Simulator) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if terminal := s.tick(); terminal {
				return
			}
		}
	}
}

// tick avança um minuto: gera lances, aplica mutações, decide término e emite
// o Update. Um panic na geração marca a partida como FAILED sem afetar as
// demais simulações.
func (s *Simulator) tick() (terminal bool) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.st.Status = StatusFailed
			s.st.UpdatedAt = time.Now().UTC()
			snap := s.st.Snapshot()
			s.mu.Unlock()

			s.log.Error("tick panic, match failed",
				zap.String("match_id", snap.ID),
				zap.Any("cause", r),
			)
			s.emit(Update{State: snap, Failed: true}, true)
			terminal = true
		}
	}()

	s.mu.Lock()
	if s.st.Status != StatusLive {
		s.mu.Unlock()
		return true
	}

	s.st.Minute++
	applied := s.src.Generate(s.st, s.st.Minute)
	goal := false
	for _, ev := range applied {
		s.apply(ev)
		if ev.Type == EventGoal {
			goal = true
		}
	}
	if !goal {
		s.relaxMomentum()
	}

	finished := s.st.Minute >= s.params.RegularTime+s.st.Stoppage
	if finished {
		s.st.Status = StatusFinished
	}
	s.st.UpdatedAt = time.Now().UTC()
	snap := s.st.Snapshot()
	s.mu.Unlock()

	s.emit(Update{State: snap, Applied: applied, Finished: finished}, finished)
	return finished
}

// apply registra o lance no log e, em caso de gol, muta placar e momentum.
// Chamado com o lock de escrita já adquirido.
func (s *Simulator) apply(ev Event) {
	s.st.Events = append(s.st.Events, ev)

	if ev.Type != EventGoal {
		return
	}

	delta := s.params.GoalMomentumDelta
	if ev.Team == SideHome {
		s.st.HomeScore++
		s.st.HomeMomentum = min(s.st.HomeMomentum+delta, s.params.MomentumMax)
		s.st.AwayMomentum = max(s.st.AwayMomentum-delta, s.params.MomentumMin)
	} else {
		s.st.AwayScore++
		s.st.AwayMomentum = min(s.st.AwayMomentum+delta, s.params.MomentumMax)
		s.st.HomeMomentum = max(s.st.HomeMomentum-delta, s.params.MomentumMin)
	}
}

// relaxMomentum aproxima ambos os lados do valor de repouso (decaimento
// exponencial). Chamado com o lock de escrita já adquirido.
func (s *Simulator) relaxMomentum() {
	base := s.params.MomentumBaseline
	decay := s.params.MomentumDecay
	s.st.HomeMomentum += (base - s.st.HomeMomentum) * decay
	s.st.AwayMomentum += (base - s.st.AwayMomentum) * decay
}

// emit entrega o Update sem bloquear o tick. Updates intermediários podem ser
// descartados se o consumidor estiver atrasado; o update terminal espera pelo
// consumidor, porque dispara a liquidação, cedendo apenas para o stop do
// próprio simulador (sem consumidor no shutdown, ninguém mais vai ler).
func (s *Simulator) emit(u Update, mustDeliver bool) {
	if mustDeliver {
		select {
		case s.updates <- u:
			return
		default:
		}
		select {
		case s.updates <- u:
		case <-s.stopCh:
			s.log.Warn("terminal update dropped on stop",
				zap.String("match_id", u.State.ID),
				zap.Int("minute", u.State.Minute),
			)
		}
		return
	}
	select {
	case s.updates <- u:
	default:
		s.log.Warn("update channel full, dropping tick",
			zap.String("match_id", u.State.ID),
			zap.Int("minute", u.State.Minute),
		)
	}
}
