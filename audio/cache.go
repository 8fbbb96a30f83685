package audio

import (
	"context"
	"sync"
)

// loadHandle is a reference-counted handle to an in-flight or completed
// asset load. refs is guarded by the owning cache mutex.
type loadHandle struct {
	refs   int
	cancel context.CancelFunc
	done   chan struct{}
	clip   *Clip
	err    error
}

// wait blocks until the load completes or ctx is cancelled
func (h *loadHandle) wait(ctx context.Context) (*Clip, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.clip, nil
}

// state reports the handle's progress without blocking
func (h *loadHandle) state() LoadState {
	select {
	case <-h.done:
	default:
		return LoadPending
	}
	if h.err != nil {
		return LoadFailed
	}
	return LoadSucceeded
}

// loadCache keys reference-counted load handles by sound id. An identical
// load requested while one is outstanding reuses the in-flight handle; the
// handle is dropped and its load cancelled when the last reference goes.
type loadCache struct {
	mu      sync.Mutex
	loader  Loader
	handles map[string]*loadHandle
}

func newLoadCache(loader Loader) *loadCache {
	return &loadCache{
		loader:  loader,
		handles: make(map[string]*loadHandle),
	}
}

// acquire returns the handle for soundID, starting a load if none exists
func (c *loadCache) acquire(soundID, ref string) *loadHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[soundID]; ok {
		h.refs++
		return h
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &loadHandle{
		refs:   1,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.handles[soundID] = h

	go func() {
		clip, err := c.loader.Load(ctx, ref)
		h.clip, h.err = clip, err
		close(h.done)
	}()
	return h
}

// release drops one reference; the last release cancels and evicts the
// handle. Releasing an id with no handle is a no-op.
func (c *loadCache) release(soundID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.handles[soundID]
	if !ok {
		return
	}
	h.refs--
	if h.refs > 0 {
		return
	}
	delete(c.handles, soundID)
	h.cancel()
}

// size returns the number of cached handles
func (c *loadCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// clear cancels every outstanding load and empties the cache
func (c *loadCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, h := range c.handles {
		h.cancel()
		delete(c.handles, id)
	}
}
