package match

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("match not found")
	ErrAlreadyRegistered = errors.New("match already registered")
)

// RegistryConfig parametriza o registro de simulações.
type RegistryConfig struct {
	Params       Params
	TickInterval time.Duration // intervalo de relógio de um minuto simulado
	Buffer       int           // capacidade do canal de updates compartilhado
	Seed         func(matchID string) int64 // nil => relógio
}

// Registry é o dono explícito das simulações em andamento: registra,
// inicia, para e expõe snapshots. Substitui qualquer mapa global de timers;
// o ciclo de vida é todo dele.
type Registry struct {
	log     *zap.Logger
	cfg     RegistryConfig
	updates chan Update

	mu   sync.Mutex
	sims map[string]*Simulator
}

func NewRegistry(log *zap.Logger, cfg RegistryConfig) *Registry {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Seed == nil {
		cfg.Seed = func(string) int64 { return time.Now().UnixNano() }
	}
	return &Registry{
		log:     log,
		cfg:     cfg,
		updates: make(chan Update, cfg.Buffer),
		sims:    make(map[string]*Simulator),
	}
}

// Updates é o canal compartilhado por onde todas as simulações emitem.
// Dentro de uma partida os updates chegam em ordem estrita de minuto;
// entre partidas não há ordem garantida.
func (r *Registry) Updates() <-chan Update { return r.updates }

// Register acrescenta uma partida SCHEDULED ao registro, com rng próprio
// derivado da seed configurada.
func (r *Registry) Register(st *State) error {
	if st.Status != StatusScheduled {
		return ErrNotScheduled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sims[st.ID]; ok {
		return ErrAlreadyRegistered
	}

	rng := rand.New(rand.NewSource(r.cfg.Seed(st.ID)))
	gen := NewGenerator(r.cfg.Params, rng)
	sim := NewSimulator(r.log, r.cfg.Params, st, gen, rng, r.cfg.TickInterval, r.updates)
	r.sims[st.ID] = sim

	r.log.Info("match registered",
		zap.String("match_id", st.ID),
		zap.String("home", st.HomeTeam),
		zap.String("away", st.AwayTeam),
	)
	return nil
}

// Start inicia a simulação de uma partida registrada.
func (r *Registry) Start(matchID string) error {
	sim, err := r.get(matchID)
	if err != nil {
		return err
	}
	if err := sim.Start(); err != nil {
		return err
	}
	r.log.Info("match started", zap.String("match_id", matchID))
	return nil
}

// Stop interrompe os ticks de uma partida. No-op se já terminou ou nunca
// começou.
func (r *Registry) Stop(matchID string) error {
	sim, err := r.get(matchID)
	if err != nil {
		return err
	}
	sim.Stop()
	return nil
}

// State devolve um snapshot do estado corrente da partida.
func (r *Registry) State(matchID string) (State, error) {
	sim, err := r.get(matchID)
	if err != nil {
		return State{}, err
	}
	return sim.State(), nil
}

// Unregister remove uma partida do registro. A simulação, se ativa, é parada.
func (r *Registry) Unregister(matchID string) {
	r.mu.Lock()
	sim, ok := r.sims[matchID]
	if ok {
		delete(r.sims, matchID)
	}
	r.mu.Unlock()

	if ok {
		sim.Stop()
	}
}

// StopAll encerra todas as simulações e aguarda os loops terminarem, limitado
// pelo contexto. Usado no shutdown do serviço.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	sims := make([]*Simulator, 0, len(r.sims))
	for _, sim := range r.sims {
		sims = append(sims, sim)
	}
	r.mu.Unlock()

	for _, sim := range sims {
		sim.Stop()
	}
	for _, sim := range sims {
		if !sim.startedOnce() {
			continue
		}
		select {
		case <-sim.Done():
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) get(matchID string) (*Simulator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sim, ok := r.sims[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return sim, nil
}

// startedOnce informa se o loop de ticks chegou a existir.
func (s *Simulator) startedOnce() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
