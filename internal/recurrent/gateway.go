package recurrent

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/metrics"
)

// callTimeout bounds every outbound gateway call. A timeout is an ordinary
// failure, not a distinct cancellation path.
const callTimeout = 10 * time.Second

// CallResult reports the outcome of an outbound gateway call.
type CallResult struct {
	OK         bool
	StatusCode int
}

// GatewayClient issues charge-initiation calls to the payment gateway over a
// pooled transport.
type GatewayClient struct {
	client *http.Client
}

func NewGatewayClient() *GatewayClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &GatewayClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   callTimeout,
		},
	}
}

// Call performs one bounded request and drains the body so the connection
// can be reused.
func (c *GatewayClient) Call(ctx context.Context, method, url string) CallResult {
	started := time.Now()
	defer func() {
		metrics.GatewayCallDuration.Observe(time.Since(started).Seconds())
	}()

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, url, nil)
	if err != nil {
		return CallResult{}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return CallResult{}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return CallResult{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}
}
