package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// DefaultRemoteTimeout bounds one prediction round trip.
const DefaultRemoteTimeout = 2 * time.Second

// RemoteConfig configures a Remote classifier.
type RemoteConfig struct {
	// Endpoint is the base URL of the inference service.
	Endpoint string
	// Timeout bounds each prediction call. Zero uses DefaultRemoteTimeout.
	Timeout time.Duration
	// Client overrides the HTTP client, mostly for tests.
	Client *http.Client
}

// Remote classifies frames with an HTTP inference service. Each frame is
// POSTed to {endpoint}/predict as a JPEG; the service answers
// {"payload": <label index>}.
type Remote struct {
	Preprocessor
	predictURL string
	timeout    time.Duration
	client     *http.Client
}

// NewRemote creates a Remote classifier.
func NewRemote(cfg RemoteConfig, pre Preprocessor) (*Remote, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("remote classifier: endpoint is required")
	}
	base, err := url.Parse(cfg.Endpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote classifier: invalid endpoint %q", cfg.Endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	return &Remote{
		Preprocessor: pre,
		predictURL:   strings.TrimSuffix(cfg.Endpoint, "/") + "/predict",
		timeout:      timeout,
		client:       client,
	}, nil
}

type predictResponse struct {
	Payload *int `json:"payload"`
}

// Classify sends img to the inference service.
func (r *Remote) Classify(ctx context.Context, img *gocv.Mat) (int, error) {
	if img == nil || img.Empty() {
		return 0, ErrEmptyFrame
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *img)
	if err != nil {
		return 0, fmt.Errorf("encode frame: %w", err)
	}
	body := bytes.Clone(buf.GetBytes())
	buf.Close()

	return r.predict(ctx, body)
}

func (r *Remote) predict(ctx context.Context, jpeg []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.predictURL, bytes.NewReader(jpeg))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("predict: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("predict: decode response: %w", err)
	}
	if out.Payload == nil {
		return 0, errors.New("predict: response has no payload")
	}
	return *out.Payload, nil
}

// Close releases idle connections.
func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
