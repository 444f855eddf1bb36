package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// refreshGroup ensures at most one refresh request is in flight. Callers
// that hit 401 while a refresh is running wait for its outcome.
type refreshGroup struct {
	mu   sync.Mutex
	call *refreshCall
}

type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

var errNoToken = errors.New("no token to refresh")

// refreshToken returns a token to retry with after stale was rejected.
func (c *Client) refreshToken(ctx context.Context, stale string) (string, error) {
	g := &c.refresh

	g.mu.Lock()
	current, ok := c.tokens.Get()
	if !ok {
		// Cleared by a failed refresh or a logout since the request left.
		g.mu.Unlock()
		return "", unauthorizedError(errNoToken)
	}
	if current != stale && g.call == nil {
		// Another caller already refreshed.
		g.mu.Unlock()
		return current, nil
	}

	call := g.call
	leader := call == nil
	if leader {
		call = &refreshCall{done: make(chan struct{})}
		g.call = call
	}
	g.mu.Unlock()

	if leader {
		// The refresh outcome is shared, so one caller's cancellation
		// must not abort it for the others.
		call.token, call.err = c.doRefresh(context.WithoutCancel(ctx), stale)

		g.mu.Lock()
		g.call = nil
		g.mu.Unlock()
		close(call.done)
	} else {
		select {
		case <-call.done:
		case <-ctx.Done():
			return "", networkError(ctx.Err())
		}
	}

	if call.err != nil {
		return "", call.err
	}
	return call.token, nil
}

// doRefresh calls the refresh endpoint. On any failure it clears the
// stored token and publishes the unauthorized signal.
func (c *Client) doRefresh(ctx context.Context, stale string) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, RefreshPath, nil, stale)
	if err == nil {
		var out struct {
			Token string `json:"token"`
		}
		err = decodeResponse(resp, &out)
		if err == nil && out.Token == "" {
			err = errors.New("refresh response carried no token")
		}
		if err == nil {
			if err = c.tokens.Save(out.Token); err == nil {
				c.metrics.refreshed(true)
				c.log.Debug("token refreshed")
				return out.Token, nil
			}
		}
	}

	c.metrics.refreshed(false)
	c.log.WithError(err).Warn("token refresh failed, ending session")
	if rmErr := c.tokens.Remove(); rmErr != nil {
		c.log.WithError(rmErr).Warn("removing token")
	}
	if c.signal != nil {
		c.signal.Publish()
	}
	return "", unauthorizedError(err)
}
