// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package complete

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// preflightBase is the DOI resolver queried by the pre-flight existence
// check. Declared as a var so tests can substitute an httptest server.
var preflightBase = "https://doi.org/"

// preflight asks the DOI resolver whether an identifier exists at all,
// before any adapter call is spent on it. A HEAD request suffices; only
// the status matters. Transport errors are reported so the caller can
// choose to proceed (a flaky resolver should not doom the chain).
func (c *Completer) preflight(ctx context.Context, doi string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, preflightBase+doi, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.deps.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("pre-flight check: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}
