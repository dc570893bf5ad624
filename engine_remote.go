package goRecover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const remoteBodyLimit = 1 << 20

// httpRemoteVerifier is the default [RemoteVerifier]: one JSON POST per
// round against the configured endpoint.
type httpRemoteVerifier struct {
	url    string
	client *http.Client
}

func newHTTPRemoteVerifier(cfg RemoteConfig) *httpRemoteVerifier {
	return &httpRemoteVerifier{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (v *httpRemoteVerifier) Verify(ctx context.Context, req *RemoteRequest) (*RemoteResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := v.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote verifier status %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, remoteBodyLimit))
	if err != nil {
		return nil, err
	}

	var resp RemoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("remote verifier decode: %w", err)
	}

	switch resp.State {
	case RemoteInProgress, RemoteComplete, RemoteFailed:
	default:
		return nil, fmt.Errorf("remote verifier state %q", resp.State)
	}

	return &resp, nil
}
