package match

import (
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"
)

// drain consome o canal até o update terminal, validando a ordem dos minutos.
func drain(t *testing.T, updates <-chan Update) (terminal Update, seen []Update) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	lastMinute := 0
	for {
		select {
		case u := <-updates:
			if u.State.Minute < lastMinute {
				t.Fatalf("minute went backwards: %d after %d", u.State.Minute, lastMinute)
			}
			lastMinute = u.State.Minute
			seen = append(seen, u)
			if u.Finished || u.Failed {
				return u, seen
			}
		case <-deadline:
			t.Fatalf("no terminal update within deadline")
		}
	}
}

func newTestSimulator(t *testing.T, seed int64) (*Simulator, chan Update) {
	t.Helper()
	home, away := testRatings()
	st := NewState("m1", "Gremio", "Internacional", home, away, true)
	updates := make(chan Update, 256)
	rng := rand.New(rand.NewSource(seed))
	gen := NewGenerator(DefaultParams(), rng)
	sim := NewSimulator(zap.NewNop(), DefaultParams(), st, gen, rng, time.Millisecond, updates)
	return sim, updates
}

func TestSimulatorRunsToFinish(t *testing.T) {
	sim, updates := newTestSimulator(t, 11)
	if err := sim.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	final, _ := drain(t, updates)
	if !final.Finished {
		t.Fatalf("expected Finished update, got %+v", final)
	}
	if final.State.Status != StatusFinished {
		t.Fatalf("status = %s, want FINISHED", final.State.Status)
	}

	params := DefaultParams()
	if final.State.Stoppage < 1 || final.State.Stoppage > params.MaxStoppage {
		t.Fatalf("stoppage = %d, want 1..%d", final.State.Stoppage, params.MaxStoppage)
	}
	want := params.RegularTime + final.State.Stoppage
	if final.State.Minute != want {
		t.Fatalf("final minute = %d, want %d", final.State.Minute, want)
	}

	home, away := 0, 0
	for _, ev := range final.State.Events {
		if ev.Type != EventGoal {
			continue
		}
		if ev.Team == SideHome {
			home++
		} else {
			away++
		}
	}
	if home != final.State.HomeScore || away != final.State.AwayScore {
		t.Fatalf("score %d-%d does not match goal events %d-%d",
			final.State.HomeScore, final.State.AwayScore, home, away)
	}

	if final.State.HomeMomentum < 0 || final.State.HomeMomentum > 100 ||
		final.State.AwayMomentum < 0 || final.State.AwayMomentum > 100 {
		t.Fatalf("momentum out of range: %.1f / %.1f",
			final.State.HomeMomentum, final.State.AwayMomentum)
	}
}

func TestSimulatorStateFrozenAfterFinish(t *testing.T) {
	sim, updates := newTestSimulator(t, 13)
	if err := sim.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	final, _ := drain(t, updates)

	select {
	case <-sim.Done():
	case <-time.After(time.Second):
		t.Fatalf("loop did not terminate after finish")
	}

	// qualquer tick residual teria mutado minuto ou placar
	time.Sleep(20 * time.Millisecond)
	after := sim.State()
	if after.Minute != final.State.Minute ||
		after.HomeScore != final.State.HomeScore ||
		after.AwayScore != final.State.AwayScore ||
		after.Status != StatusFinished {
		t.Fatalf("state mutated after finish: %+v vs %+v", after, final.State)
	}
}

func TestSimulatorStartRequiresScheduled(t *testing.T) {
	sim, updates := newTestSimulator(t, 17)
	if err := sim.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sim.Start(); err != ErrNotScheduled {
		t.Fatalf("second start err = %v, want ErrNotScheduled", err)
	}
	drain(t, updates)
}

func TestSimulatorStopHaltsTicks(t *testing.T) {
	sim, updates := newTestSimulator(t, 19)
	if err := sim.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// deixa alguns minutos acontecerem antes de parar
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatalf("no update before stop")
	}
	sim.Stop()
	sim.Stop() // idempotente

	select {
	case <-sim.Done():
	case <-time.After(time.Second):
		t.Fatalf("loop did not terminate after stop")
	}

	st := sim.State()
	if st.Status != StatusLive {
		t.Fatalf("stop should not change status, got %s", st.Status)
	}
	minute := st.Minute

	time.Sleep(20 * time.Millisecond)
	if sim.State().Minute != minute {
		t.Fatalf("minute advanced after stop")
	}
}

func TestSimulatorStopOnScheduledThenStart(t *testing.T) {
	sim, updates := newTestSimulator(t, 31)

	// stop antes do start é no-op: não pode envenenar o loop de ticks
	sim.Stop()
	sim.Stop()
	if st := sim.State(); st.Status != StatusScheduled {
		t.Fatalf("stop on scheduled changed status to %s", st.Status)
	}

	if err := sim.Start(); err != nil {
		t.Fatalf("start after no-op stop: %v", err)
	}
	final, _ := drain(t, updates)
	if !final.Finished || final.State.Status != StatusFinished {
		t.Fatalf("match did not run to finish after stop-then-start: %+v", final.State)
	}
	if final.State.Minute == 0 {
		t.Fatalf("no ticks happened after stop-then-start")
	}
}

func TestSimulatorStopUnblocksUndeliveredTerminal(t *testing.T) {
	home, away := testRatings()
	st := NewState("m1", "A", "B", home, away, false)
	updates := make(chan Update) // nenhum consumidor
	rng := rand.New(rand.NewSource(37))
	sim := NewSimulator(zap.NewNop(), DefaultParams(), st, NewGenerator(DefaultParams(), rng), rng,
		time.Millisecond, updates)

	if err := sim.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// sem consumidor os ticks regulares são descartados; espera o estado
	// terminal, quando o update final fica retido aguardando entrega
	deadline := time.Now().Add(10 * time.Second)
	for sim.State().Status != StatusFinished {
		if time.Now().After(deadline) {
			t.Fatalf("match never reached FINISHED")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sim.Stop()
	select {
	case <-sim.Done():
	case <-time.After(time.Second):
		t.Fatalf("tick loop still blocked on terminal delivery after stop")
	}
}

// panicSource injeta uma falha de geração num minuto específico.
type panicSource struct {
	inner EventSource
	at    int
}

func (p *panicSource) Generate(st *State, minute int) []Event {
	if minute >= p.at {
		panic("generator blew up")
	}
	return p.inner.Generate(st, minute)
}

func TestSimulatorPanicFailsMatchOnly(t *testing.T) {
	home, away := testRatings()
	updates := make(chan Update, 256)

	// partida que falha no minuto 5
	badState := NewState("bad", "A", "B", home, away, false)
	badRng := rand.New(rand.NewSource(23))
	bad := NewSimulator(zap.NewNop(), DefaultParams(), badState,
		&panicSource{inner: NewGenerator(DefaultParams(), badRng), at: 5},
		badRng, time.Millisecond, updates)

	// partida saudável no mesmo canal
	okState := NewState("ok", "C", "D", home, away, false)
	okRng := rand.New(rand.NewSource(29))
	ok := NewSimulator(zap.NewNop(), DefaultParams(), okState,
		NewGenerator(DefaultParams(), okRng), okRng, time.Millisecond, updates)

	if err := bad.Start(); err != nil {
		t.Fatalf("start bad: %v", err)
	}
	if err := ok.Start(); err != nil {
		t.Fatalf("start ok: %v", err)
	}

	var failed, finished bool
	deadline := time.After(10 * time.Second)
	for !(failed && finished) {
		select {
		case u := <-updates:
			switch {
			case u.Failed && u.State.ID == "bad":
				if u.State.Status != StatusFailed {
					t.Fatalf("failed update with status %s", u.State.Status)
				}
				failed = true
			case u.Finished && u.State.ID == "ok":
				finished = true
			case u.Failed || u.Finished:
				t.Fatalf("unexpected terminal update for %s", u.State.ID)
			}
		case <-deadline:
			t.Fatalf("missing terminal updates: failed=%v finished=%v", failed, finished)
		}
	}

	if bad.State().Status != StatusFailed {
		t.Fatalf("bad match status = %s, want FAILED", bad.State().Status)
	}
	if ok.State().Status != StatusFinished {
		t.Fatalf("ok match status = %s, want FINISHED", ok.State().Status)
	}
}
