package jsvm

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// pool maintains pre-warmed interpreter instances so a call does not pay the
// construction cost on the hot path. Instances are handed out exactly once:
// an interpreter that has run guest code is never returned to the pool.
type pool struct {
	config    Config
	logger    *slog.Logger
	runtimes  chan *goja.Runtime
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func newPool(cfg Config, logger *slog.Logger) *pool {
	return &pool{
		config:   cfg,
		logger:   logger,
		runtimes: make(chan *goja.Runtime, cfg.PoolSize),
		done:     make(chan struct{}),
	}
}

// start begins filling the pool with fresh interpreters in the background.
func (p *pool) start() {
	p.startOnce.Do(func() {
		p.logger.Debug("starting interpreter pool", slog.Int("poolSize", p.config.PoolSize))
		p.wg.Add(1)
		go p.manager()
	})
}

// stop shuts down the manager and discards pre-warmed interpreters.
func (p *pool) stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()

	for {
		select {
		case <-p.runtimes:
		default:
			return
		}
	}
}

// get returns a fresh, never-used interpreter. If the pool is empty or
// stopped, one is constructed inline.
func (p *pool) get() *goja.Runtime {
	select {
	case vm := <-p.runtimes:
		return vm
	default:
		return p.newRuntime()
	}
}

// manager keeps the pool at capacity until stopped.
func (p *pool) manager() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		default:
			if len(p.runtimes) < cap(p.runtimes) {
				select {
				case p.runtimes <- p.newRuntime():
				case <-p.done:
					return
				}
			} else {
				// Pool is full, wait a bit
				select {
				case <-time.After(50 * time.Millisecond):
				case <-p.done:
					return
				}
			}
		}
	}
}

func (p *pool) newRuntime() *goja.Runtime {
	vm := goja.New()
	vm.SetMaxCallStackSize(p.config.MaxCallStackSize)
	return vm
}
