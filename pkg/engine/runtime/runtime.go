/*
Package runtime provides a thread-safe front for the wallet SDK client,
which is neither safe to share between goroutines nor to move across them.

One dedicated worker goroutine owns the client for the lifetime of a
started runtime: the client is dialed on that goroutine and never escapes
it. Callers interact by posting messages into an unbounded FIFO queue, each
carrying its own one-shot reply channel, which gives them a synchronous
await over the asynchronous worker and a strict per-process ordering of SDK
calls.
*/
package runtime

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/0xMiden/MultiSig/pkg/miden"
)

// Config holds runtime configuration.
type Config struct {
	// Client configures the wallet client dialed by the worker.
	Client miden.ClientConfig
	// Dial overrides the wallet client constructor, miden.Dial is used
	// when nil.
	Dial miden.DialFunc
	// TrackAccounts are imported into the wallet on startup.
	TrackAccounts []miden.AccountID
	// Log is the runtime logger.
	Log *zap.Logger
}

// Runtime runs the wallet worker. Create with New, then Start, Post any
// number of messages and Stop once done.
type Runtime struct {
	cfg     Config
	log     *zap.Logger
	queue   *queue
	started *atomic.Bool
	done    chan struct{}
}

// New returns an unstarted Runtime with the given configuration.
func New(cfg Config) *Runtime {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{
		cfg:     cfg,
		log:     log,
		queue:   newQueue(),
		started: atomic.NewBool(false),
		done:    make(chan struct{}),
	}
}

// Start spawns the worker goroutine and waits for it to dial the wallet
// client, returning the dial error if that fails. The runtime only starts
// once, subsequent calls are no-op.
func (r *Runtime) Start() error {
	if !r.started.CAS(false, true) {
		return nil
	}
	r.log.Info("starting wallet runtime", zap.String("node", r.cfg.Client.NodeURL))

	dialErr := make(chan error, 1)
	go r.run(dialErr)
	if err := <-dialErr; err != nil {
		r.started.CAS(true, false)
		return err
	}
	return nil
}

// Stop makes the worker close the wallet client and exit, then waits for
// it. Messages still queued behind the stop request are not processed. A
// stopped runtime can not be started again.
func (r *Runtime) Stop() {
	if !r.started.CAS(true, false) {
		return
	}
	r.log.Info("stopping wallet runtime")
	r.queue.put(shutdown{})
	<-r.done
}

// Post enqueues a message for the worker. It never blocks; the reply
// arrives on the message's reply channel once the worker gets to it.
func (r *Runtime) Post(msg Message) {
	r.queue.put(msg)
}

// run is the worker. It owns the wallet client exclusively: dialing it,
// serving queued messages one at a time and closing it on shutdown.
func (r *Runtime) run(dialErr chan<- error) {
	defer close(r.done)

	ctx := context.Background()
	dial := r.cfg.Dial
	if dial == nil {
		dial = miden.Dial
	}
	client, err := dial(ctx, r.cfg.Client)
	if err != nil {
		dialErr <- fmt.Errorf("failed to dial wallet client: %w", err)
		return
	}
	dialErr <- nil

	r.track(ctx, client)

	for {
		msg := r.queue.take()
		if _, ok := msg.(shutdown); ok {
			if err := client.Close(); err != nil {
				r.log.Warn("failed to close wallet client", zap.Error(err))
			}
			r.log.Info("wallet runtime stopped")
			return
		}
		if err := client.SyncState(ctx); err != nil {
			r.replyError(msg, fmt.Errorf("failed to sync state: %w", err))
			continue
		}
		r.dispatch(ctx, client, msg)
	}
}

// track imports the configured accounts into the wallet. Failures are
// logged and skipped: an account that can not be imported now does not
// block the runtime, its operations will fail individually instead.
func (r *Runtime) track(ctx context.Context, client miden.Client) {
	if err := client.SyncState(ctx); err != nil {
		r.log.Warn("startup state sync failed", zap.Error(err))
	}
	for _, id := range r.cfg.TrackAccounts {
		if err := client.ImportAccount(ctx, id); err != nil {
			r.log.Warn("failed to import tracked account",
				zap.Stringer("account", id), zap.Error(err))
			continue
		}
		r.log.Debug("tracking account", zap.Stringer("account", id))
	}
	r.log.Info("wallet runtime started", zap.Int("tracked", len(r.cfg.TrackAccounts)))
}
