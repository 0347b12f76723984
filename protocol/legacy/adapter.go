// Package legacy implements protocol.Adapter over the regulator's deprecated
// XML/RPC retrieval service. Its responses are already in the canonical
// representation and are returned as they come.
package legacy

import (
	"context"
	"fmt"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

const (
	fiIDTypeRSSD    = "ID_RSSD"
	facsimileFormat = "XBRL"
)

// LegacyClient exposes the remote operations of the legacy service. Dates are
// M/D/YYYY strings. Implementations are already authenticated.
type LegacyClient interface {
	RetrieveReportingPeriods(ctx context.Context, dataSeries string) ([]string, error)
	RetrieveUBPRReportingPeriods(ctx context.Context) ([]string, error)
	RetrieveFacsimile(ctx context.Context, dataSeries, fiIDType, fiID, reportingPeriodEndDate, facsimileFormat string) ([]byte, error)
	RetrieveUBPRXBRLFacsimile(ctx context.Context, fiIDType, fiID, reportingPeriodEndDate string) ([]byte, error)
	RetrievePanelOfReporters(ctx context.Context, dataSeries, reportingPeriodEndDate string) ([]protocol.InstitutionRecord, error)
	RetrieveFilersSinceDate(ctx context.Context, dataSeries, lastUpdateDateTime, reportingPeriodEndDate string) ([]string, error)
	RetrieveFilersSubmissionDateTime(ctx context.Context, dataSeries, lastUpdateDateTime, reportingPeriodEndDate string) ([]protocol.Submission, error)
}

type AdapterOpts struct {
	Logger logger.Logger
	Client LegacyClient
}

// verifyConfig validates all required fields are properly set
func (o *AdapterOpts) verifyConfig() error {
	var errs []error

	if o.Logger == nil {
		errs = append(errs, fmt.Errorf("logger is required for legacy adapter"))
	}
	if o.Client == nil {
		errs = append(errs, fmt.Errorf("legacy client is required for legacy adapter"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid legacy adapter configuration: %v", errs)
	}

	return nil
}

var _ protocol.Adapter = (*Adapter)(nil)

type Adapter struct {
	lggr   logger.SugaredLogger
	client LegacyClient
}

// NewAdapter logs a deprecation notice once per adapter.
func NewAdapter(opts AdapterOpts) (*Adapter, error) {
	if err := opts.verifyConfig(); err != nil {
		return nil, err
	}
	a := &Adapter{
		lggr:   logger.Sugared(opts.Logger).Named("LegacyAdapter"),
		client: opts.Client,
	}
	a.lggr.Warnw("The legacy XML/RPC service is deprecated; migrate to the REST service with OAuth2 credentials")
	return a, nil
}

func (a *Adapter) Protocol() protocol.Protocol { return protocol.Legacy }

func (a *Adapter) ReportingPeriods(ctx context.Context, series protocol.Series) ([]string, error) {
	series, err := protocol.ParseSeries(string(series))
	if err != nil {
		return nil, err
	}
	if series == protocol.SeriesUBPR {
		return a.client.RetrieveUBPRReportingPeriods(ctx)
	}
	return a.client.RetrieveReportingPeriods(ctx, series.DataSeries())
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

	var (
		body     []byte
		endpoint protocol.Endpoint
	)
	if series == protocol.SeriesUBPR {
		endpoint = protocol.EndpointUBPRFacsimile
		body, err = a.client.RetrieveUBPRXBRLFacsimile(ctx, fiIDTypeRSSD, id, formatted)
	} else {
		endpoint = protocol.EndpointFacsimile
		body, err = a.client.RetrieveFacsimile(ctx, series.DataSeries(), fiIDTypeRSSD, id, formatted, facsimileFormat)
	}
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &protocol.NoDataError{
			Endpoint: endpoint,
			Reason:   fmt.Sprintf("no facsimile for institution %s in period %s", id, formatted),
		}
	}
	return body, nil
}

func (a *Adapter) ReporterPanel(ctx context.Context, period string) ([]protocol.InstitutionRecord, error) {
	formatted, err := protocol.FormatPeriod(period)
	if err != nil {
		return nil, err
	}
	return a.client.RetrievePanelOfReporters(ctx, protocol.SeriesCall.DataSeries(), formatted)
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
	return a.client.RetrieveFilersSinceDate(ctx, protocol.SeriesCall.DataSeries(), sinceDate, formatted)
}

// FilerSubmissions asks for every submission since the first day of the
// period's quarter.
func (a *Adapter) FilerSubmissions(ctx context.Context, period string) ([]protocol.Submission, error) {
	t, err := protocol.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	return a.client.RetrieveFilersSubmissionDateTime(ctx, protocol.SeriesCall.DataSeries(),
		protocol.QuarterStart(t), t.Format(protocol.PeriodLayout))
}
