// Package rest implements protocol.Adapter over the regulator's JSON/REST
// retrieval service. All request parameters travel as headers, and every
// non-binary response is normalized into the legacy representation before it
// is returned.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/openfinreg/ffiec-data-connect/normalize"
	"github.com/openfinreg/ffiec-data-connect/protocol"
)

// Parameter header names.
const (
	hdrDataSeries         = "dataSeries"
	hdrPeriodEndDate      = "reportingPeriodEndDate"
	hdrLastUpdateDateTime = "lastUpdateDateTime"
	hdrFIIDType           = "fiIdType"
	hdrFIID               = "fiId"
	hdrFacsimileFormat    = "facsimileFormat"
)

var _ protocol.Adapter = (*Adapter)(nil)

// Adapter is safe for concurrent use. Requests are paced by the Limiter it
// was given, which may be shared with other adapters on purpose.
type Adapter struct {
	lggr       logger.SugaredLogger
	creds      *protocol.OAuth2Credentials
	limiter    Limiter
	client     *http.Client
	baseURL    string
	timeout    time.Duration
	candidates map[protocol.Series][]Candidate
	normalizer *normalize.Normalizer
	now        func() time.Time
}

func NewAdapter(opts ClientOpts) (*Adapter, error) {
	if err := opts.verifyConfig(); err != nil {
		return nil, err
	}
	a := &Adapter{
		lggr:       logger.Sugared(opts.Logger).Named("RESTAdapter"),
		creds:      opts.Credentials,
		limiter:    opts.Limiter,
		client:     opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timeout:    opts.Timeout,
		candidates: make(map[protocol.Series][]Candidate, len(DefaultFacsimileCandidates)),
		normalizer: normalize.NewNormalizer(opts.Logger),
		now:        opts.Now,
	}
	if a.client == nil {
		a.client = &http.Client{}
	}
	if a.baseURL == "" {
		a.baseURL = DefaultBaseURL
	}
	if a.timeout == 0 {
		a.timeout = DefaultTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	for series, candidates := range DefaultFacsimileCandidates {
		a.candidates[series] = candidates
	}
	for series, candidates := range opts.FacsimileCandidates {
		a.candidates[series] = candidates
	}

	if a.creds.IsExpired(a.now()) {
		a.lggr.Warnw("OAuth2 token is expired or expires within 24 hours", "expiresAt", a.creds.ExpiresAt)
	}
	a.lggr.Debugw("REST adapter configured", "baseURL", a.baseURL, "timeout", a.timeout, "credentials", a.creds.String())
	return a, nil
}

func (a *Adapter) Protocol() protocol.Protocol { return protocol.REST }

func (a *Adapter) ReportingPeriods(ctx context.Context, series protocol.Series) ([]string, error) {
	series, err := protocol.ParseSeries(string(series))
	if err != nil {
		return nil, err
	}
	endpoint := protocol.EndpointReportingPeriods
	p := params{hdrDataSeries: series.DataSeries()}
	if series == protocol.SeriesUBPR {
		// The UBPR operation takes no series header.
		endpoint, p = protocol.EndpointUBPRReportingPeriods, nil
	}

	raw, err := a.call(ctx, endpoint, p)
	if err != nil {
		return nil, err
	}
	periods, err := toStrings(endpoint, a.normalize(endpoint, raw))
	if err != nil {
		return nil, err
	}
	a.lggr.Infow("Retrieved reporting periods", "series", series, "count", len(periods))
	return periods, nil
}

func (a *Adapter) Facsimile(ctx context.Context, institutionID, period string, series protocol.Series) ([]byte, error) {
	id, err := protocol.ValidateInstitutionID(institutionID)
	if err != nil {
		return nil, err
	}
	formatted, err := protocol.FormatPeriod(period)
	if err != nil {
		return nil, err
	}
	if series, err = protocol.ParseSeries(string(series)); err != nil {
		return nil, err
	}
	return a.facsimile(ctx, series, id, formatted)
}

func (a *Adapter) ReporterPanel(ctx context.Context, period string) ([]protocol.InstitutionRecord, error) {
	formatted, err := protocol.FormatPeriod(period)
	if err != nil {
		return nil, err
	}
	endpoint := protocol.EndpointPanelOfReporters
	raw, err := a.call(ctx, endpoint, params{
		hdrPeriodEndDate: formatted,
		hdrDataSeries:    protocol.SeriesCall.DataSeries(),
	})
	if err != nil {
		return nil, err
	}
	objects, err := toObjects(endpoint, a.normalize(endpoint, raw))
	if err != nil {
		return nil, err
	}
	records := make([]protocol.InstitutionRecord, len(objects))
	for i, obj := range objects {
		records[i] = protocol.InstitutionRecord(obj)
	}
	a.lggr.Infow("Retrieved reporter panel", "period", formatted, "count", len(records))
	return records, nil
}

func (a *Adapter) FilersSince(ctx context.Context, period, since string) ([]string, error) {
	formatted, err := protocol.FormatPeriod(period)
	if err != nil {
		return nil, err
	}
	sinceDate, err := protocol.FormatDate(since)
	if err != nil {
		return nil, err
	}
	endpoint := protocol.EndpointFilersSinceDate
	raw, err := a.call(ctx, endpoint, params{
		hdrPeriodEndDate:      formatted,
		hdrLastUpdateDateTime: sinceDate,
		hdrDataSeries:         protocol.SeriesCall.DataSeries(),
	})
	if err != nil {
		return nil, err
	}
	ids, err := toStrings(endpoint, a.normalize(endpoint, raw))
	if err != nil {
		return nil, err
	}
	a.lggr.Infow("Retrieved filers since date", "period", formatted, "since", sinceDate, "count", len(ids))
	return ids, nil
}

// FilerSubmissions asks for every submission since the first day of the
// period's quarter, which the service requires as lastUpdateDateTime.
func (a *Adapter) FilerSubmissions(ctx context.Context, period string) ([]protocol.Submission, error) {
	t, err := protocol.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	endpoint := protocol.EndpointFilersSubmissionDateTime
	raw, err := a.call(ctx, endpoint, params{
		hdrPeriodEndDate:      t.Format(protocol.PeriodLayout),
		hdrLastUpdateDateTime: protocol.QuarterStart(t),
		hdrDataSeries:         protocol.SeriesCall.DataSeries(),
	})
	if err != nil {
		return nil, err
	}
	objects, err := toObjects(endpoint, a.normalize(endpoint, raw))
	if err != nil {
		return nil, err
	}
	subs := make([]protocol.Submission, len(objects))
	for i, obj := range objects {
		rec := protocol.InstitutionRecord(obj)
		subs[i] = protocol.Submission{
			InstitutionID: rec.ID(),
			SubmittedAt:   rec.String(protocol.FieldDateTime),
		}
		if subs[i].SubmittedAt == "" {
			subs[i].SubmittedAt = rec.String(protocol.FieldSubmissionDateTime)
		}
	}
	a.lggr.Infow("Retrieved filer submissions", "period", t.Format(protocol.PeriodLayout), "count", len(subs))
	return subs, nil
}

func (a *Adapter) normalize(endpoint protocol.Endpoint, raw any) any {
	res := a.normalizer.Normalize(raw, endpoint, protocol.REST)
	if n := len(res.Warnings); n > 0 {
		promNormalizationWarnings.WithLabelValues(string(endpoint)).Add(float64(n))
	}
	return res.Payload
}

func unexpectedShape(endpoint protocol.Endpoint, want string, got any) error {
	return &protocol.ProtocolError{
		Endpoint:   endpoint,
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf("expected %s, got %T", want, got),
	}
}

func toStrings(endpoint protocol.Endpoint, payload any) ([]string, error) {
	switch p := payload.(type) {
	case []string:
		return p, nil
	case []any:
		out := make([]string, len(p))
		for i, v := range p {
			s, ok := v.(string)
			if !ok {
				return nil, unexpectedShape(endpoint, "an array of strings", v)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, unexpectedShape(endpoint, "a JSON array", payload)
}

func toObjects(endpoint protocol.Endpoint, payload any) ([]map[string]any, error) {
	switch p := payload.(type) {
	case []map[string]any:
		return p, nil
	case []any:
		out := make([]map[string]any, len(p))
		for i, v := range p {
			obj, ok := v.(map[string]any)
			if !ok {
				return nil, unexpectedShape(endpoint, "an array of objects", v)
			}
			out[i] = obj
		}
		return out, nil
	}
	return nil, unexpectedShape(endpoint, "a JSON array", payload)
}
