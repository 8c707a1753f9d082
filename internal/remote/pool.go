package remote

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/pkg/sshutil"
	"golang.org/x/sync/singleflight"
)

// Dialer opens a connection to an alias.
type Dialer func(ctx context.Context, alias string) (sshutil.SSHClient, error)

// SSHDialer dials with sshutil using opts.
func SSHDialer(opts sshutil.DialOptions) Dialer {
	return func(ctx context.Context, alias string) (sshutil.SSHClient, error) {
		return sshutil.Dial(ctx, alias, opts)
	}
}

// idleCheckAfter is how long a connection may sit unused before Get pings it.
const idleCheckAfter = 30 * time.Second

// Pool keeps one SSH connection per alias between calls, so an overview pass
// over dozens of containers on one host shares a single connection.
type Pool struct {
	mu    sync.Mutex
	conns map[string]*poolEntry
	dial  Dialer
	dials singleflight.Group
	log   logger.Logger
	now   func() time.Time
}

type poolEntry struct {
	client   sshutil.SSHClient
	lastUsed time.Time
}

// NewPool creates an empty pool.
func NewPool(dial Dialer, log logger.Logger) *Pool {
	return &Pool{
		conns: make(map[string]*poolEntry),
		dial:  dial,
		log:   logger.Named(log, "pool"),
		now:   time.Now,
	}
}

// Get returns the pooled connection for alias, dialing if there is none or
// the pooled one stopped answering. Concurrent dials to one alias collapse
// into a single attempt.
func (p *Pool) Get(ctx context.Context, alias string) (sshutil.SSHClient, error) {
	p.mu.Lock()
	entry, ok := p.conns[alias]
	var idle time.Duration
	if ok {
		idle = p.now().Sub(entry.lastUsed)
		entry.lastUsed = p.now()
	}
	p.mu.Unlock()

	if ok {
		if idle < idleCheckAfter || entry.client.Alive() {
			return entry.client, nil
		}
		p.log.Debug("connection to %s went stale, redialing", alias)
		p.Drop(alias, entry.client)
	}

	v, err, _ := p.dials.Do(alias, func() (interface{}, error) {
		p.mu.Lock()
		if e, ok := p.conns[alias]; ok {
			p.mu.Unlock()
			return e.client, nil
		}
		p.mu.Unlock()

		client, err := p.dial(ctx, alias)
		if err != nil {
			return nil, err
		}
		p.log.Debug("connected to %s", alias)

		p.mu.Lock()
		p.conns[alias] = &poolEntry{client: client, lastUsed: p.now()}
		p.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(sshutil.SSHClient), nil
}

// Drop closes client and forgets it, unless alias has already been redialed.
func (p *Pool) Drop(alias string, client sshutil.SSHClient) {
	p.mu.Lock()
	entry, ok := p.conns[alias]
	if ok && entry.client == client {
		delete(p.conns, alias)
	}
	p.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
}

// Size returns the number of pooled connections.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close closes every connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for alias, entry := range p.conns {
		_ = entry.client.Close()
		delete(p.conns, alias)
	}
}
