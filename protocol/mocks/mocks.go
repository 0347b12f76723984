package mocks

import (
	"context"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

type MockLegacyClient struct {
	RetrieveReportingPeriodsF         func(ctx context.Context, dataSeries string) ([]string, error)
	RetrieveUBPRReportingPeriodsF     func(ctx context.Context) ([]string, error)
	RetrieveFacsimileF                func(ctx context.Context, dataSeries, fiIDType, fiID, period, format string) ([]byte, error)
	RetrieveUBPRXBRLFacsimileF        func(ctx context.Context, fiIDType, fiID, period string) ([]byte, error)
	RetrievePanelOfReportersF         func(ctx context.Context, dataSeries, period string) ([]protocol.InstitutionRecord, error)
	RetrieveFilersSinceDateF          func(ctx context.Context, dataSeries, since, period string) ([]string, error)
	RetrieveFilersSubmissionDateTimeF func(ctx context.Context, dataSeries, since, period string) ([]protocol.Submission, error)
}

func (m *MockLegacyClient) RetrieveReportingPeriods(ctx context.Context, dataSeries string) ([]string, error) {
	return m.RetrieveReportingPeriodsF(ctx, dataSeries)
}
func (m *MockLegacyClient) RetrieveUBPRReportingPeriods(ctx context.Context) ([]string, error) {
	return m.RetrieveUBPRReportingPeriodsF(ctx)
}
func (m *MockLegacyClient) RetrieveFacsimile(ctx context.Context, dataSeries, fiIDType, fiID, period, format string) ([]byte, error) {
	return m.RetrieveFacsimileF(ctx, dataSeries, fiIDType, fiID, period, format)
}
func (m *MockLegacyClient) RetrieveUBPRXBRLFacsimile(ctx context.Context, fiIDType, fiID, period string) ([]byte, error) {
	return m.RetrieveUBPRXBRLFacsimileF(ctx, fiIDType, fiID, period)
}
func (m *MockLegacyClient) RetrievePanelOfReporters(ctx context.Context, dataSeries, period string) ([]protocol.InstitutionRecord, error) {
	return m.RetrievePanelOfReportersF(ctx, dataSeries, period)
}
func (m *MockLegacyClient) RetrieveFilersSinceDate(ctx context.Context, dataSeries, since, period string) ([]string, error) {
	return m.RetrieveFilersSinceDateF(ctx, dataSeries, since, period)
}
func (m *MockLegacyClient) RetrieveFilersSubmissionDateTime(ctx context.Context, dataSeries, since, period string) ([]protocol.Submission, error) {
	return m.RetrieveFilersSubmissionDateTimeF(ctx, dataSeries, since, period)
}
