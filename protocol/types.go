package protocol

import "fmt"

// Reporter panel field names. The REST service adds the Physical* and Mailing*
// fields and InstitutionName.
const (
	FieldIDRSSD                = "ID_RSSD"
	FieldFDICCertNumber        = "FDICCertNumber"
	FieldOCCChartNumber        = "OCCChartNumber"
	FieldOTSDockNumber         = "OTSDockNumber"
	FieldPrimaryABARoutNumber  = "PrimaryABARoutNumber"
	FieldName                  = "Name"
	FieldState                 = "State"
	FieldCity                  = "City"
	FieldAddress               = "Address"
	FieldZIP                   = "ZIP"
	FieldFilingType            = "FilingType"
	FieldHasFiledForPeriod     = "HasFiledForReportingPeriod"
	FieldInstitutionName       = "InstitutionName"
	FieldPhysicalStreetAddress = "PhysicalStreetAddress"
	FieldPhysicalCity          = "PhysicalCity"
	FieldPhysicalState         = "PhysicalState"
	FieldMailingStreetAddress  = "MailingStreetAddress"
	FieldMailingCity           = "MailingCity"
	FieldMailingState          = "MailingState"
	FieldMailingZIP            = "MailingZIP"

	FieldDateTime           = "DateTime"
	FieldSubmissionDateTime = "SubmissionDateTime"
)

// InstitutionRecord is one reporter panel row in canonical form: numeric ids
// as digit strings, five digit postal codes and "true"/"false" flags.
type InstitutionRecord map[string]any

// String returns a field rendered as a string, or "" when absent.
func (r InstitutionRecord) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ID returns the institution's RSSD id.
func (r InstitutionRecord) ID() string { return r.String(FieldIDRSSD) }

// Submission is the latest filing timestamp of one institution.
type Submission struct {
	InstitutionID string `json:"ID_RSSD"`
	SubmittedAt   string `json:"DateTime"`
}
