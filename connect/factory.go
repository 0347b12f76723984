// Package connect builds a protocol.Adapter for whichever backend the given
// credentials authenticate against.
package connect

import (
	"fmt"
	"net/http"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/openfinreg/ffiec-data-connect/protocol"
	"github.com/openfinreg/ffiec-data-connect/protocol/legacy"
	"github.com/openfinreg/ffiec-data-connect/protocol/rest"
	"github.com/openfinreg/ffiec-data-connect/ratelimit"
)

type options struct {
	lggr       logger.Logger
	httpClient *http.Client
	clock      ratelimit.Clock
	limiter    rest.Limiter
}

type Option func(*options)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(lggr logger.Logger) Option {
	return func(o *options) { o.lggr = lggr }
}

// WithHTTPClient sets the HTTP client used by either backend.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClock sets the clock of the rate limiter built for a REST adapter.
func WithClock(c ratelimit.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLimiter makes a REST adapter use l instead of building its own
// limiter. Passing the same limiter to several adapters shares one quota.
func WithLimiter(l rest.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// NewAdapter returns a REST adapter for *protocol.OAuth2Credentials and a
// legacy adapter for *protocol.WebserviceCredentials. Any other credential
// type is a CredentialError.
func NewAdapter(cfg Config, creds any, opts ...Option) (protocol.Adapter, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lggr == nil {
		o.lggr = logger.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connect configuration: %w", err)
	}

	switch c := creds.(type) {
	case *protocol.OAuth2Credentials:
		if c == nil {
			break
		}
		return newREST(cfg.REST, c, o)
	case *protocol.WebserviceCredentials:
		if c == nil {
			break
		}
		return newLegacy(cfg.Legacy, c, o)
	}
	return nil, &protocol.CredentialError{
		Reason: fmt.Sprintf("unsupported credentials type %T; expected *OAuth2Credentials or *WebserviceCredentials", creds),
	}
}

func newREST(cfg RESTConfig, creds *protocol.OAuth2Credentials, o options) (protocol.Adapter, error) {
	limiter := o.limiter
	if limiter == nil {
		l, err := ratelimit.New(ratelimit.Config{
			Logger:         o.lggr,
			CallsPerSecond: cfg.CallsPerSecond,
			CallsPerHour:   cfg.CallsPerHour,
			Clock:          o.clock,
		})
		if err != nil {
			return nil, err
		}
		limiter = l
	}
	a, err := rest.NewAdapter(rest.ClientOpts{
		Logger:      o.lggr,
		Credentials: creds,
		Limiter:     limiter,
		BaseURL:     cfg.BaseURL,
		HTTPClient:  o.httpClient,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newLegacy(cfg LegacyConfig, creds *protocol.WebserviceCredentials, o options) (protocol.Adapter, error) {
	client, err := legacy.NewSOAPClient(legacy.SOAPClientOpts{
		Logger:      o.lggr,
		Credentials: creds,
		URL:         cfg.URL,
		HTTPClient:  o.httpClient,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	a, err := legacy.NewAdapter(legacy.AdapterOpts{Logger: o.lggr, Client: client})
	if err != nil {
		return nil, err
	}
	return a, nil
}
