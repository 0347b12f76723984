package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

const (
	DefaultBaseURL = "https://ffieccdr.azure-api.us/public"
	DefaultTimeout = 30 * time.Second
)

// Limiter gates every outbound request.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Candidate is one (path, method) pair tried when fetching a facsimile.
type Candidate struct {
	Endpoint string
	Method   string
}

// DefaultFacsimileCandidates are tried in order until one answers with 200.
// The service has published the facsimile operations under more than one
// name.
var DefaultFacsimileCandidates = map[protocol.Series][]Candidate{
	protocol.SeriesCall: {
		{Endpoint: string(protocol.EndpointFacsimile), Method: http.MethodGet},
		{Endpoint: string(protocol.EndpointFacsimile), Method: http.MethodPost},
		{Endpoint: string(protocol.EndpointFacsimile) + "Ext", Method: http.MethodPost},
	},
	protocol.SeriesUBPR: {
		{Endpoint: string(protocol.EndpointUBPRFacsimile), Method: http.MethodGet},
		{Endpoint: string(protocol.EndpointUBPRFacsimile), Method: http.MethodPost},
		{Endpoint: string(protocol.EndpointUBPRFacsimile) + "Ext", Method: http.MethodPost},
	},
}

type ClientOpts struct {
	Logger      logger.Logger
	Credentials *protocol.OAuth2Credentials
	// Limiter is required and owned by the caller; adapters never create or
	// share one on their own.
	Limiter Limiter

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient defaults to a new client. It must be safe for concurrent
	// use, as *http.Client is.
	HTTPClient *http.Client
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// FacsimileCandidates overrides DefaultFacsimileCandidates per series.
	FacsimileCandidates map[protocol.Series][]Candidate
	// Now defaults to time.Now and is used for credential expiry checks.
	Now func() time.Time
}

// verifyConfig validates all required fields are properly set
func (c *ClientOpts) verifyConfig() error {
	var errs []error

	if c.Logger == nil {
		errs = append(errs, fmt.Errorf("logger is required for REST adapter"))
	}
	if c.Credentials == nil {
		errs = append(errs, fmt.Errorf("OAuth2 credentials are required for REST adapter"))
	} else if err := c.Credentials.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Limiter == nil {
		errs = append(errs, fmt.Errorf("rate limiter is required for REST adapter"))
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid base URL %q", c.BaseURL))
		}
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	for series, candidates := range c.FacsimileCandidates {
		if len(candidates) == 0 {
			errs = append(errs, fmt.Errorf("no facsimile candidates for series %q", series))
		}
		for _, cand := range candidates {
			if cand.Endpoint == "" || (cand.Method != http.MethodGet && cand.Method != http.MethodPost) {
				errs = append(errs, fmt.Errorf("invalid facsimile candidate %+v for series %q", cand, series))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid REST adapter configuration: %v", errs)
	}

	return nil
}
