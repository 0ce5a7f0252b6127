package perfectcorp

import (
	"context"
	"net/http"
	"sync"
)

// DiscoverEndpoint probes every base URL / version combination in parallel
// and returns the first one that answers with a status below 500. All
// combinations failing is fatal for the request.
func (c *Client) DiscoverEndpoint(ctx context.Context) (Endpoint, error) {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan Endpoint, len(c.baseURLs)*len(c.versions))
	var wg sync.WaitGroup

	for _, base := range c.baseURLs {
		for _, version := range c.versions {
			ep := Endpoint{BaseURL: base, Version: version}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if c.probe(probeCtx, ep) {
					found <- ep
				}
			}()
		}
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	ep, ok := <-found
	if !ok {
		return Endpoint{}, ErrNoWorkingEndpoint
	}
	return ep, nil
}

func (c *Client) probe(ctx context.Context, ep Endpoint) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, ep.URL("/client/auth"), nil)
	if err != nil {
		return false
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	// 4xx still proves the combination is routed; only 5xx means a dead surface.
	return resp.StatusCode < 500
}

// ensureEndpoint resolves and caches the working endpoint for this client.
// Safe for concurrent callers: the first one discovers while the rest wait
// and reuse the cached result.
func (c *Client) ensureEndpoint(ctx context.Context) (Endpoint, error) {
	c.endpointMu.Lock()
	defer c.endpointMu.Unlock()
	if c.endpoint != nil {
		return *c.endpoint, nil
	}
	ep, err := c.DiscoverEndpoint(ctx)
	if err != nil {
		return Endpoint{}, err
	}
	c.endpoint = &ep
	return ep, nil
}

// alternateEndpoint returns the same host with the next version prefix, used
// as a one-shot fallback when the upload-credential request fails.
func (c *Client) alternateEndpoint(ep Endpoint) (Endpoint, bool) {
	for i, v := range c.versions {
		if v == ep.Version && i+1 < len(c.versions) {
			return Endpoint{BaseURL: ep.BaseURL, Version: c.versions[i+1]}, true
		}
	}
	return Endpoint{}, false
}
