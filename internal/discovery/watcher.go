package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CandidateHandler receives every token the feed currently lists, once
// per polling pass. Deduplication is the handler's concern.
type CandidateHandler func(ctx context.Context, token Token)

type WatcherConfig struct {
	Interval     time.Duration // e.g. 10*time.Second
	FetchTimeout time.Duration

	// Prime, when set, receives the feed's initial listing instead of
	// the regular handler. Lets consumers absorb everything already
	// listed at startup without acting on it.
	Prime CandidateHandler
}

// Watcher polls the discovery feed on an interval and hands each
// listed token to the handler.
type Watcher struct {
	client  *Client
	handler CandidateHandler
	cfg     WatcherConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func NewWatcher(client *Client, handler CandidateHandler, cfg WatcherConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Watcher{
		client:  client,
		handler: handler,
		cfg:     cfg,
	}
}

func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		fmt.Println("[WATCHER] Already running")
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	go func() {
		// Immediate pass on startup, then the recurring ticker. The
		// startup pass goes to Prime when configured.
		first := w.handler
		if w.cfg.Prime != nil {
			first = w.cfg.Prime
		}
		w.poll(first)

		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				w.poll(w.handler)
			}
		}
	}()

	fmt.Printf("[WATCHER] Started (every %s)\n", w.cfg.Interval)
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopCh)
	w.running = false
	fmt.Println("[WATCHER] Stopped")
}

func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) poll(handler CandidateHandler) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.FetchTimeout)
	defer cancel()

	tokens, err := w.client.FetchTokens(ctx, true)
	if err != nil {
		fmt.Printf("[WATCHER] Feed poll failed: %v\n", err)
		return
	}

	for _, tok := range tokens {
		select {
		case <-ctx.Done():
			return
		default:
		}
		handler(ctx, tok)
	}
}
