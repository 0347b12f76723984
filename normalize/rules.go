package normalize

import (
	"github.com/openfinreg/ffiec-data-connect/protocol"
)

// Rule describes how one endpoint's REST payload maps onto the legacy shape.
type Rule struct {
	// Fields coerces named fields of each object in the payload.
	Fields map[string]Coercion
	// Items, when set, treats the payload as a homogeneous array and coerces
	// every element.
	Items Coercion
	// PassThrough marks opaque binary payloads that are never transformed.
	PassThrough bool
}

var panelRule = Rule{Fields: map[string]Coercion{
	protocol.FieldIDRSSD:               Identifier,
	protocol.FieldFDICCertNumber:       Identifier,
	protocol.FieldOCCChartNumber:       Identifier,
	protocol.FieldOTSDockNumber:        Identifier,
	protocol.FieldPrimaryABARoutNumber: Identifier,
	protocol.FieldZIP:                  PostalCode,
	protocol.FieldMailingZIP:           PostalCode,
	protocol.FieldHasFiledForPeriod:    Bool,

	protocol.FieldName:                  Text,
	protocol.FieldCity:                  Text,
	protocol.FieldState:                 Text,
	protocol.FieldAddress:               Text,
	protocol.FieldFilingType:            Text,
	protocol.FieldInstitutionName:       Text,
	protocol.FieldPhysicalStreetAddress: Text,
	protocol.FieldPhysicalCity:          Text,
	protocol.FieldPhysicalState:         Text,
	protocol.FieldMailingStreetAddress:  Text,
	protocol.FieldMailingCity:           Text,
	protocol.FieldMailingState:          Text,
}}

var rules = map[protocol.Endpoint]Rule{
	protocol.EndpointPanelOfReporters: panelRule,
	protocol.EndpointFilersSinceDate:  {Items: Identifier},
	protocol.EndpointFilersSubmissionDateTime: {Fields: map[string]Coercion{
		protocol.FieldIDRSSD:             Identifier,
		protocol.FieldDateTime:           DateTime,
		protocol.FieldSubmissionDateTime: DateTime,
	}},
	protocol.EndpointReportingPeriods:     {Items: DateString},
	protocol.EndpointUBPRReportingPeriods: {Items: DateString},
	protocol.EndpointFacsimile:            {PassThrough: true},
	protocol.EndpointUBPRFacsimile:        {PassThrough: true},
}

// RuleFor returns the rule registered for an endpoint.
func RuleFor(endpoint protocol.Endpoint) (Rule, bool) {
	r, ok := rules[endpoint]
	return r, ok
}
