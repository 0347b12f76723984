package normalize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

// Shapes a normalized payload is expected to have. A violation means a
// coercion missed something; it is reported, never enforced.
const (
	panelSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["ID_RSSD"],
    "properties": {
      "ID_RSSD": {"type": "string", "pattern": "^\\d+$"},
      "FDICCertNumber": {"type": "string", "pattern": "^\\d*$"},
      "OCCChartNumber": {"type": "string", "pattern": "^\\d*$"},
      "OTSDockNumber": {"type": "string", "pattern": "^\\d*$"},
      "PrimaryABARoutNumber": {"type": "string", "pattern": "^\\d*$"},
      "ZIP": {"type": "string", "pattern": "^(\\d{5})?$"},
      "MailingZIP": {"type": "string", "pattern": "^(\\d{5})?$"},
      "HasFiledForReportingPeriod": {"enum": ["true", "false"]}
    }
  }
}`
	filersSchema = `{
  "type": "array",
  "items": {"type": "string", "pattern": "^\\d+$"}
}`
	submissionsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["ID_RSSD"],
    "properties": {
      "ID_RSSD": {"type": "string", "pattern": "^\\d+$"},
      "DateTime": {"type": "string"},
      "SubmissionDateTime": {"type": "string"}
    }
  }
}`
	periodsSchema = `{
  "type": "array",
  "items": {"type": "string", "pattern": "^\\d{1,2}/\\d{1,2}/\\d{4}$"}
}`
)

var schemas = map[protocol.Endpoint]*jsonschema.Schema{
	protocol.EndpointPanelOfReporters:         mustCompile(protocol.EndpointPanelOfReporters, panelSchema),
	protocol.EndpointFilersSinceDate:          mustCompile(protocol.EndpointFilersSinceDate, filersSchema),
	protocol.EndpointFilersSubmissionDateTime: mustCompile(protocol.EndpointFilersSubmissionDateTime, submissionsSchema),
	protocol.EndpointReportingPeriods:         mustCompile(protocol.EndpointReportingPeriods, periodsSchema),
	protocol.EndpointUBPRReportingPeriods:     mustCompile(protocol.EndpointUBPRReportingPeriods, periodsSchema),
}

func mustCompile(endpoint protocol.Endpoint, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://ffiec-data-connect.schemas.local/normalize/%s.schema.json", endpoint)
	if err := c.AddResource(schemaURL, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("failed to load schema for %s: %v", endpoint, err))
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("failed to compile schema for %s: %v", endpoint, err))
	}
	return compiled
}

// Validate checks a normalized payload against the expected shape for the
// endpoint and returns one message per violation.
func Validate(endpoint protocol.Endpoint, payload any) []string {
	schema, ok := schemas[endpoint]
	if !ok {
		return nil
	}
	// Round trip through JSON so the validator sees plain JSON values
	// whatever Go types the payload holds.
	b, err := json.Marshal(payload)
	if err != nil {
		return []string{fmt.Sprintf("payload is not JSON encodable: %v", err)}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return []string{fmt.Sprintf("payload is not valid JSON: %v", err)}
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	collect(verr, &out)
	return out
}

func collect(e *jsonschema.ValidationError, out *[]string) {
	if len(e.Causes) == 0 {
		*out = append(*out, fmt.Sprintf("%s: %s", location(e.InstanceLocation), e.Message))
		return
	}
	for _, c := range e.Causes {
		collect(c, out)
	}
}

func location(l string) string {
	if l == "" {
		return "/"
	}
	return l
}
