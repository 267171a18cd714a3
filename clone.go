package hec

import "github.com/kon-rad/hec-ingest/internal/transport"

// Clone returns a client configured by deep-merging overrides onto c's
// configuration. If overrides carries nothing set, Clone returns c
// itself. If the effective URL changes, the clone gets a wholly
// independent connection pool (via New); otherwise it shares c's pool
// and transport, so cloning to tweak, say, DefaultMetadata doesn't
// multiply TCP connections to the same endpoint.
func (c *Client) Clone(overrides ConfigOverrides) (*Client, error) {
	if overrides.isEmpty() {
		return c, nil
	}

	newCfg := withDefaults(overrides.apply(c.cfg))
	if err := validate(newCfg); err != nil {
		return nil, err
	}

	if newCfg.URL != c.cfg.URL {
		pool := transport.Global.Get(newCfg.URL, transportOptions(newCfg))
		return newClient(newCfg, pool, newCfg.URL)
	}
	return newClient(newCfg, c.pool, c.poolKey)
}
