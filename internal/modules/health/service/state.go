package service

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the process health snapshot. It doubles as the datafeed poll
// observer.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	pollsOK      atomic.Int64
	pollsFailed  atomic.Int64
	barsEmitted  atomic.Int64
	lastPollUnix atomic.Int64 // unix seconds
	lastError    atomic.Value // string

	mu     sync.RWMutex
	gauges map[string]func() int
}

func NewState() *State {
	s := &State{
		startedAt: time.Now(),
		gauges:    make(map[string]func() int),
	}
	s.lastError.Store("")
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// OnPoll records the outcome of one live-bar poll.
func (s *State) OnPoll(symbol, resolution string, emitted int, err error) {
	s.lastPollUnix.Store(time.Now().Unix())
	if err != nil {
		s.pollsFailed.Add(1)
		s.lastError.Store(symbol + " " + resolution + ": " + err.Error())
		return
	}
	s.pollsOK.Add(1)
	s.barsEmitted.Add(int64(emitted))
}

func (s *State) LastError() string { return s.lastError.Load().(string) }

// RegisterGauge exposes fn under name in the snapshot.
func (s *State) RegisterGauge(name string, fn func() int) {
	s.mu.Lock()
	s.gauges[name] = fn
	s.mu.Unlock()
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

type Snapshot struct {
	Ready        bool           `json:"ready"`
	UptimeSec    int64          `json:"uptimeSec"`
	PollsOK      int64          `json:"pollsOk"`
	PollsFailed  int64          `json:"pollsFailed"`
	BarsEmitted  int64          `json:"barsEmitted"`
	LastPollUnix int64          `json:"lastPollUnix"`
	LastError    string         `json:"lastError,omitempty"`
	Gauges       map[string]int `json:"gauges,omitempty"`
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Ready:        s.Ready(),
		UptimeSec:    int64(s.Uptime().Seconds()),
		PollsOK:      s.pollsOK.Load(),
		PollsFailed:  s.pollsFailed.Load(),
		BarsEmitted:  s.barsEmitted.Load(),
		LastPollUnix: s.lastPollUnix.Load(),
		LastError:    s.LastError(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.gauges) > 0 {
		snap.Gauges = make(map[string]int, len(s.gauges))
		for name, fn := range s.gauges {
			snap.Gauges[name] = fn()
		}
	}
	return snap
}
