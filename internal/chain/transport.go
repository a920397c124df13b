package chain

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/x1wallet/walletcore/internal/metrics"
	"github.com/x1wallet/walletcore/internal/version"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// callState records what the transport saw for one RPC call, so failures
// can be classified without relying on how the JSON-RPC layer wraps them.
type callState struct {
	err error
}

type callStateKey struct{}

func withCallState(ctx context.Context) (context.Context, *callState) {
	st := &callState{}
	return context.WithValue(ctx, callStateKey{}, st), st
}

// transport applies the per-endpoint rate limit and turns HTTP 429 and 5xx
// responses into classified errors.
type transport struct {
	base     http.RoundTripper
	limiter  *RateLimiter
	endpoint string
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	st, _ := req.Context().Value(callStateKey{}).(*callState)
	fail := func(err error) (*http.Response, error) {
		if st != nil {
			st.err = err
		}
		return nil, err
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context(), t.endpoint); err != nil {
			return fail(walleterr.WrapAs(walleterr.ErrTimeout, err))
		}
	}

	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		metrics.Global.RecordRPCCall(time.Since(start), err)
		if req.Context().Err() != nil {
			return fail(walleterr.WrapAs(walleterr.ErrTimeout, err))
		}
		return fail(WrapRetryable(walleterr.WrapAs(walleterr.ErrNetwork, err)))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		err = newRateLimitError(resp.Header.Get("Retry-After"))
	case resp.StatusCode >= http.StatusInternalServerError:
		err = WrapRetryable(walleterr.WithDetails(walleterr.ErrNetwork, map[string]string{"status": strconv.Itoa(resp.StatusCode)}))
	}
	metrics.Global.RecordRPCCall(time.Since(start), err)
	if err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		_ = resp.Body.Close()
		return fail(err)
	}
	return resp, nil
}
