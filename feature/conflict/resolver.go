package conflict

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"booksync/core/errs"
)

// defaultHistorySize bounds the resolution audit ring.
const defaultHistorySize = 100

// Resolver applies named strategies to conflicts and keeps a bounded
// audit trail of every decision.
type Resolver struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	history    *history
	logger     *zap.Logger
	now        func() time.Time
}

func NewResolver(historySize int, logger *zap.Logger) *Resolver {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		strategies: map[string]Strategy{},
		history:    newHistory(historySize),
		logger:     logger,
		now:        time.Now,
	}
	r.Register(StrategyKeepLatest, keepLatest)
	r.Register(StrategyKeepHighestProgress, keepHighestProgress)
	r.Register(StrategyMergeBestAttributes, mergeBestAttributes)
	r.Register(StrategyManualResolve, manualResolve)
	return r
}

// Register installs a strategy under name, replacing any previous one.
func (r *Resolver) Register(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

// Strategies lists the registered strategy names.
func (r *Resolver) Strategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}

// Resolve decides every conflict with the named strategy. The n-th
// resolution corresponds to the n-th conflict. Unknown strategies are
// rejected before any conflict is touched.
func (r *Resolver) Resolve(conflicts []Conflict, strategyName string) ([]Resolution, error) {
	r.mu.RLock()
	strategy, ok := r.strategies[strategyName]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.Input(errs.CodeValidation, "unknown resolution strategy %q", strategyName)
	}

	resolutions := make([]Resolution, 0, len(conflicts))
	for _, c := range conflicts {
		res := strategy(c)
		res.ID = c.ID
		res.Strategy = strategyName
		res.ResolvedAt = r.now()
		resolutions = append(resolutions, res)
		r.history.add(res)
	}

	r.logger.Info("conflicts resolved",
		zap.String("strategy", strategyName),
		zap.Int("count", len(resolutions)))
	return resolutions, nil
}

// History returns the retained resolutions, oldest first.
func (r *Resolver) History() []Resolution {
	return r.history.snapshot()
}

// history is a fixed-size ring of past resolutions.
type history struct {
	mu    sync.Mutex
	ring  []Resolution
	next  int
	count int
}

func newHistory(size int) *history {
	return &history{ring: make([]Resolution, size)}
}

func (h *history) add(res Resolution) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring[h.next] = res
	h.next = (h.next + 1) % len(h.ring)
	if h.count < len(h.ring) {
		h.count++
	}
}

func (h *history) snapshot() []Resolution {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Resolution, 0, h.count)
	start := h.next - h.count
	if start < 0 {
		start += len(h.ring)
	}
	for i := 0; i < h.count; i++ {
		out = append(out, h.ring[(start+i)%len(h.ring)])
	}
	return out
}
