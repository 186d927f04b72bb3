package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mattjoyce/aoproc/internal/protocol"
)

const clientTimeout = 10 * time.Second

// remoteProcess sends messages to a running host's POST /handle.
type remoteProcess struct {
	baseURL string
	client  *http.Client
}

func newRemoteProcess(baseURL string) *remoteProcess {
	return &remoteProcess{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: clientTimeout},
	}
}

// Handle never fails; transport errors come back as an Error response so the
// console can render them like any other reply.
func (r *remoteProcess) Handle(raw string) string {
	resp, err := r.client.Post(r.baseURL+"/handle", "application/json", strings.NewReader(raw))
	if err != nil {
		return encodeLocalError(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return encodeLocalError(fmt.Sprintf("read response: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		return encodeLocalError(fmt.Sprintf("host returned %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}
	return string(body)
}

func encodeLocalError(msg string) string {
	out, err := protocol.EncodeResponse(protocol.ErrorResponse(protocol.UnknownSender, msg))
	if err != nil {
		return protocol.FallbackSerializationError
	}
	return string(out)
}

// fetchState returns the body and ETag of GET /state.
func fetchState(ctx context.Context, baseURL string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/state", nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("host returned %s", resp.Status)
	}
	return string(body), strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

func defaultBaseURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		listen = "127.0.0.1" + listen
	}
	return "http://" + listen
}
