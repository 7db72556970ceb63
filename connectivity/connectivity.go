package connectivity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrConnectivity marks a failed reachability check.
var ErrConnectivity = errors.New("api unreachable")

// Check sends a GET to target and reports whether any
// HTTP response came back. Status codes are not
// inspected: an unauthenticated 401 still proves the
// service is reachable. A nil client means
// http.DefaultClient.
func Check(
	ctx context.Context,
	client *http.Client,
	target string,
	userAgent string,
) error {
	const errCtx = "checking connectivity"

	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, target, nil,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: %w: build request: %w",
			errCtx, ErrConnectivity, err,
		)
	}

	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf(
			"%s: %w: %w", errCtx, ErrConnectivity, err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck

	slog.Info(
		"api reachable",
		"url", target,
		"status", resp.StatusCode,
	)

	return nil
}
