package scan

import (
	"context"
	"errors"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/rollup"
)

// ErrCommandQueueFull is returned by Controls.Send when the engine is
// too far behind to accept another command.
var ErrCommandQueueFull = errors.New("scan command queue is full")

// Controls is the consumer's handle on a running engine.
type Controls struct {
	commands chan<- Command
	stop     chan<- struct{}
}

// Send queues a scan command without blocking.
func (c Controls) Send(cmd Command) error {
	select {
	case c.commands <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Stop asks the running scan to end after its next emission. Repeated
// stops collapse into one.
func (c Controls) Stop() {
	select {
	case c.stop <- struct{}{}:
	default:
	}
}

// Engine runs scans in a background goroutine, one command at a time.
type Engine struct {
	opts     *ScanOptions
	scanner  *Scanner
	resolver *Resolver
}

// NewEngine creates an engine.
func NewEngine(opts *ScanOptions) *Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Engine{
		opts:     opts,
		scanner:  NewScanner(opts),
		resolver: NewResolver(),
	}
}

// WithResolver replaces the root resolver.
func (e *Engine) WithResolver(r *Resolver) *Engine {
	e.resolver = r
	return e
}

// Start launches the command loop. It returns once the loop owns its
// channels, so commands sent afterwards are never lost. The event channel
// is closed when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) (Controls, <-chan entry.Event) {
	results := make(chan entry.Event, max(e.opts.ResultBuffer, 1))
	ready := make(chan Controls)
	go e.loop(ctx, ready, results)
	return <-ready, results
}

// Progress returns counters of the current or most recent scan.
func (e *Engine) Progress() (rollup.Progress, bool) {
	return e.scanner.Progress()
}

// Errors exposes sampled per-path failures of every scan.
func (e *Engine) Errors() <-chan entry.ScanError {
	return e.scanner.Errors()
}

func (e *Engine) loop(ctx context.Context, ready chan<- Controls, results chan<- entry.Event) {
	defer close(results)

	commands := make(chan Command, max(e.opts.CommandBuffer, 1))
	stop := make(chan struct{}, 1)
	ready <- Controls{commands: commands, stop: stop}

	e.opts.logf("[ENGINE] READY")
	for {
		select {
		case <-ctx.Done():
			e.opts.logf("[ENGINE] EXIT err=%v", ctx.Err())
			return
		case cmd := <-commands:
			if !e.run(ctx, cmd, results, stop) {
				return
			}
		}
	}
}

// run handles one command and reports whether the loop should continue.
func (e *Engine) run(ctx context.Context, cmd Command, results chan<- entry.Event, stop chan struct{}) bool {
	// A stop left over from an earlier scan must not end this one.
	drain(stop)

	root, err := e.resolver.Resolve(cmd)
	if err != nil {
		e.opts.logf("[ENGINE] RESOLVE-FAILED mode=%s err=%v", cmd.Mode, err)
		return send(ctx, results, entry.DoneEvent(entry.ScanMeta{Mode: cmd.Mode.String()}, err))
	}

	e.opts.logf("[ENGINE] SCAN mode=%s root=%s", cmd.Mode, root)
	meta, err := e.scanner.Scan(ctx, root, results, stop)
	meta.Mode = cmd.Mode.String()
	if ctx.Err() != nil {
		return false
	}
	drain(stop)
	return send(ctx, results, entry.DoneEvent(meta, err))
}

func send(ctx context.Context, results chan<- entry.Event, ev entry.Event) bool {
	select {
	case results <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func drain(stop <-chan struct{}) {
	select {
	case <-stop:
	default:
	}
}
