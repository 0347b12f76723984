package protocol

import (
	"context"
	"fmt"
	"strings"
)

// Protocol identifies which wire protocol served a response.
type Protocol uint8

const (
	// Legacy is the XML/RPC (SOAP) retrieval service. Its response shapes are
	// canonical.
	Legacy Protocol = iota
	// REST is the JSON/REST retrieval service.
	REST
)

func (p Protocol) String() string {
	switch p {
	case Legacy:
		return "legacy"
	case REST:
		return "rest"
	default:
		return fmt.Sprintf("Protocol(%d)", uint8(p))
	}
}

// Endpoint is a logical remote operation name. Both backends share the names.
type Endpoint string

const (
	EndpointReportingPeriods         Endpoint = "RetrieveReportingPeriods"
	EndpointUBPRReportingPeriods     Endpoint = "RetrieveUBPRReportingPeriods"
	EndpointFacsimile                Endpoint = "RetrieveFacsimile"
	EndpointUBPRFacsimile            Endpoint = "RetrieveUBPRXBRLFacsimile"
	EndpointPanelOfReporters         Endpoint = "RetrievePanelOfReporters"
	EndpointFilersSinceDate          Endpoint = "RetrieveFilersSinceDate"
	EndpointFilersSubmissionDateTime Endpoint = "RetrieveFilersSubmissionDateTime"
)

// Series is a report series.
type Series string

const (
	SeriesCall Series = "call"
	SeriesUBPR Series = "ubpr"
)

// ParseSeries accepts a series name in any case.
func ParseSeries(s string) (Series, error) {
	switch Series(strings.ToLower(strings.TrimSpace(s))) {
	case SeriesCall:
		return SeriesCall, nil
	case SeriesUBPR:
		return SeriesUBPR, nil
	}
	return "", &ValidationError{Field: "series", Value: s, Expected: `"call" or "ubpr"`}
}

// DataSeries is the value the remote services expect in their dataSeries
// parameter.
func (s Series) DataSeries() string {
	if s == SeriesUBPR {
		return "UBPR"
	}
	return "Call"
}

// Validate reports an error for anything other than a known series.
func (s Series) Validate() error {
	_, err := ParseSeries(string(s))
	return err
}

// Adapter is the capability set shared by both backends. An adapter is bound
// to one backend at construction time; callers never branch on which one.
//
// Periods may be given as YYYY-MM-DD, YYYYMMDD, M/D/YYYY or #QYYYY and must
// name a quarter end. All parameters are validated before any network call.
type Adapter interface {
	// Protocol reports which backend serves this adapter.
	Protocol() Protocol
	// ReportingPeriods lists the reporting periods available for a series as
	// M/D/YYYY strings.
	ReportingPeriods(ctx context.Context, series Series) ([]string, error)
	// Facsimile returns the raw XBRL statement of one institution for one
	// period.
	Facsimile(ctx context.Context, institutionID, period string, series Series) ([]byte, error)
	// ReporterPanel returns the institutions expected to file for a period.
	ReporterPanel(ctx context.Context, period string) ([]InstitutionRecord, error)
	// FilersSince returns the ids of institutions that filed or amended
	// since the given date.
	FilersSince(ctx context.Context, period, since string) ([]string, error)
	// FilerSubmissions returns the latest submission timestamp of every
	// filer for a period.
	FilerSubmissions(ctx context.Context, period string) ([]Submission, error)
}
