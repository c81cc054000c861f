package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/page"
	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GenRequest is the generation-service request body.
type GenRequest struct {
	HTML        string `json:"html"`
	CSS         string `json:"css"`
	IDPrefix    string `json:"idPrefix"`
	SectionName string `json:"sectionName"`
}

// genResponse is the expected response envelope.
type genResponse struct {
	WebflowJSON string `json:"webflowJson"`
}

// ErrGeneration marks any generation-service failure. The caller contract
// is binary: either a shape-valid document came back, or this error did,
// and the deterministic builder takes over.
var ErrGeneration = errors.New("generation service failed")

// Client talks to the optional external generation service.
type Client struct {
	url     string
	token   string
	httpc   *http.Client
	timeout time.Duration
	log     *zap.Logger
}

// NewClient creates a generation client. An empty url disables the client;
// a non-empty token is sent as a bearer credential.
func NewClient(url, token string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:     url,
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     log.Named("generator"),
	}
}

// Enabled reports whether a service endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Generate requests a higher-fidelity conversion. Every failure mode -
// network error, non-2xx status, empty or malformed body, shape-check
// failure - collapses into ErrGeneration.
func (c *Client) Generate(ctx context.Context, req GenRequest) (doc *webflow.Document, err error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: no endpoint configured", ErrGeneration)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrGeneration, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrGeneration, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		c.log.Debug("Generation request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	defer func() {
		err = multierr.Append(err, resp.Body.Close())
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("Generation returned error status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrGeneration, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrGeneration, err)
	}

	var envelope genResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrGeneration, err)
	}
	if strings.TrimSpace(envelope.WebflowJSON) == "" {
		return nil, fmt.Errorf("%w: empty document in response", ErrGeneration)
	}

	doc, err = webflow.Decode([]byte(envelope.WebflowJSON))
	if err != nil {
		// A document failing the structural shape check is treated
		// identically to a transport error.
		c.log.Debug("Generated document failed shape check", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return doc, nil
}

// ConvertSection produces a candidate document for one section: the
// generation service when configured, with an unconditional fallback to the
// deterministic builder on any failure. An upstream service failure is
// never fatal - this function always returns a valid document.
func ConvertSection(ctx context.Context, sec page.Section, client *Client, builder *Builder, opts BuildOptions, log *zap.Logger) (*webflow.Document, []string) {
	if log == nil {
		log = zap.NewNop()
	}

	if client.Enabled() {
		doc, err := client.Generate(ctx, GenRequest{
			HTML:        sec.HTML,
			CSS:         sec.CSS,
			IDPrefix:    opts.IDPrefix,
			SectionName: sec.Name,
		})
		if err == nil {
			fixes := ValidateDocument(doc)
			log.Debug("Section converted by generation service",
				zap.String("section", sec.Name), zap.Int("fixes", len(fixes)))
			return doc, fixes
		}
		log.Warn("Generation service failed, using deterministic builder",
			zap.String("section", sec.Name), zap.Error(err))
	}

	return builder.BuildSection(sec, opts)
}
