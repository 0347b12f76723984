package legacy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

const (
	DefaultSOAPURL     = "https://cdr.ffiec.gov/Public/PWS/WebServices/RetrievalService.asmx"
	DefaultSOAPTimeout = 30 * time.Second

	serviceNamespace = "http://cdr.ffiec.gov/public/services"
	soapNamespace    = "http://schemas.xmlsoap.org/soap/envelope/"
	wsseNamespace    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	passwordText     = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
)

var (
	promSOAPRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffiec",
		Subsystem: "soap",
		Name:      "request_count",
		Help:      "Number of requests sent to the legacy SOAP service",
	},
		[]string{"operation", "status"},
	)
	promSOAPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ffiec",
		Subsystem: "soap",
		Name:      "request_duration_ms",
		Help:      "Duration of SOAP requests in milliseconds",
		Buckets: []float64{
			50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000,
		},
	},
		[]string{"operation"},
	)
)

type SOAPClientOpts struct {
	Logger      logger.Logger
	Credentials *protocol.WebserviceCredentials
	// URL defaults to DefaultSOAPURL.
	URL        string
	HTTPClient *http.Client
	// Timeout defaults to DefaultSOAPTimeout.
	Timeout time.Duration
}

// verifyConfig validates all required fields are properly set
func (o *SOAPClientOpts) verifyConfig() error {
	var errs []error

	if o.Logger == nil {
		errs = append(errs, fmt.Errorf("logger is required for SOAP client"))
	}
	if o.Credentials == nil {
		errs = append(errs, fmt.Errorf("webservice credentials are required for SOAP client"))
	} else if err := o.Credentials.Validate(); err != nil {
		errs = append(errs, err)
	}
	if o.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", o.Timeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid SOAP client configuration: %v", errs)
	}

	return nil
}

var _ LegacyClient = (*SOAPClient)(nil)

// SOAPClient calls the legacy retrieval service with a WS-Security
// UsernameToken. It is safe for concurrent use.
type SOAPClient struct {
	lggr    logger.SugaredLogger
	creds   *protocol.WebserviceCredentials
	url     string
	client  *http.Client
	timeout time.Duration
}

func NewSOAPClient(opts SOAPClientOpts) (*SOAPClient, error) {
	if err := opts.verifyConfig(); err != nil {
		return nil, err
	}
	c := &SOAPClient{
		lggr:    logger.Sugared(opts.Logger).Named("SOAPClient"),
		creds:   opts.Credentials,
		url:     opts.URL,
		client:  opts.HTTPClient,
		timeout: opts.Timeout,
	}
	if c.url == "" {
		c.url = DefaultSOAPURL
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	if c.timeout == 0 {
		c.timeout = DefaultSOAPTimeout
	}
	return c, nil
}

type param struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// p builds a parameter element. ASMX binds parameters only in the service
// namespace.
func p(name, value string) param {
	return param{XMLName: xml.Name{Space: serviceNamespace, Local: name}, Value: value}
}

type requestEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	SOAPNS  string   `xml:"xmlns:soap,attr"`
	Header  struct {
		Security struct {
			WSSENS string `xml:"xmlns:wsse,attr"`
			Token  struct {
				Username string `xml:"wsse:Username"`
				Password struct {
					Type  string `xml:"Type,attr"`
					Value string `xml:",chardata"`
				} `xml:"wsse:Password"`
			} `xml:"wsse:UsernameToken"`
		} `xml:"wsse:Security"`
	} `xml:"soap:Header"`
	Body struct {
		Operation struct {
			XMLName xml.Name
			Params  []param
		}
	} `xml:"soap:Body"`
}

func (c *SOAPClient) encode(operation string, params []param) ([]byte, error) {
	var env requestEnvelope
	env.SOAPNS = soapNamespace
	env.Header.Security.WSSENS = wsseNamespace
	env.Header.Security.Token.Username = c.creds.Username
	env.Header.Security.Token.Password.Type = passwordText
	env.Header.Security.Token.Password.Value = c.creds.Password
	env.Body.Operation.XMLName = xml.Name{Space: serviceNamespace, Local: operation}
	env.Body.Operation.Params = params

	b, err := xml.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), b...), nil
}

// node is a generic XML element.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

func (n *node) child(local string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *node) isNil() bool {
	for _, a := range n.Attrs {
		if a.Name.Local == "nil" && a.Value == "true" {
			return true
		}
	}
	return false
}

func (n *node) strings() []string {
	out := make([]string, 0, len(n.Nodes))
	for _, c := range n.Nodes {
		if c.isNil() {
			continue
		}
		out = append(out, strings.TrimSpace(c.Text))
	}
	return out
}

// object flattens simple child elements into a map. Nil elements are left
// out.
func (n *node) object() map[string]any {
	out := make(map[string]any, len(n.Nodes))
	for _, c := range n.Nodes {
		if c.isNil() {
			continue
		}
		out[c.XMLName.Local] = strings.TrimSpace(c.Text)
	}
	return out
}

type fault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *fault `xml:"Fault"`
		Nodes []node `xml:",any"`
	} `xml:"Body"`
}

// call invokes operation and returns its Result element, which is nil when
// the service answered without one.
func (c *SOAPClient) call(ctx context.Context, operation string, params ...param) (*node, error) {
	endpoint := protocol.Endpoint(operation)
	payload, err := c.encode(operation, params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode SOAP request")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build SOAP request")
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", strconv.Quote(serviceNamespace+"/"+operation))

	c.lggr.Debugw("Sending SOAP request", "operation", operation)
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		promSOAPRequestCount.WithLabelValues(operation, "error").Inc()
		if ctx.Err() != nil {
			err = errors.Wrapf(err, "SOAP request timed out or was cancelled after %s", time.Since(start).Round(time.Millisecond))
		} else {
			err = errors.Wrap(err, "SOAP request failed")
		}
		return nil, &protocol.ConnectionError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		promSOAPRequestCount.WithLabelValues(operation, "error").Inc()
		return nil, &protocol.ConnectionError{Endpoint: endpoint, Err: errors.Wrap(err, "failed to read SOAP response")}
	}
	promSOAPRequestCount.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()
	promSOAPRequestDuration.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))

	var env responseEnvelope
	decodeErr := xml.Unmarshal(body, &env)
	if decodeErr == nil && env.Body.Fault != nil {
		return nil, faultError(endpoint, resp.StatusCode, env.Body.Fault)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &protocol.CredentialError{Reason: fmt.Sprintf("legacy service rejected the credentials (HTTP %d)", resp.StatusCode)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &protocol.ConnectionError{Endpoint: endpoint, Err: errors.Errorf("server error (HTTP %d)", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &protocol.ProtocolError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	case decodeErr != nil:
		return nil, &protocol.ProtocolError{Endpoint: endpoint, StatusCode: resp.StatusCode,
			Body: errors.Wrap(decodeErr, "malformed SOAP response").Error()}
	}

	var response *node
	for i := range env.Body.Nodes {
		if env.Body.Nodes[i].XMLName.Local == operation+"Response" {
			response = &env.Body.Nodes[i]
			break
		}
	}
	if response == nil {
		return nil, &protocol.ProtocolError{Endpoint: endpoint, StatusCode: resp.StatusCode,
			Body: fmt.Sprintf("SOAP response has no %sResponse element", operation)}
	}
	result := response.child(operation + "Result")
	if result != nil && result.isNil() {
		result = nil
	}
	return result, nil
}

func faultError(endpoint protocol.Endpoint, status int, f *fault) error {
	msg := strings.TrimSpace(f.String)
	lower := strings.ToLower(msg)
	for _, marker := range []string{"authenticat", "unauthorized", "password", "credential"} {
		if strings.Contains(lower, marker) {
			return &protocol.CredentialError{Reason: "legacy service fault: " + msg}
		}
	}
	return &protocol.ProtocolError{Endpoint: endpoint, StatusCode: status, Body: strings.TrimSpace(f.Code + ": " + msg)}
}

func (c *SOAPClient) strings(ctx context.Context, operation string, params ...param) ([]string, error) {
	result, err := c.call(ctx, operation, params...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []string{}, nil
	}
	return result.strings(), nil
}

func (c *SOAPClient) binary(ctx context.Context, operation string, params ...param) ([]byte, error) {
	result, err := c.call(ctx, operation, params...)
	if err != nil || result == nil {
		return nil, err
	}
	encoded := strings.Join(strings.Fields(result.Text), "")
	if encoded == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &protocol.ProtocolError{Endpoint: protocol.Endpoint(operation), StatusCode: http.StatusOK,
			Body: errors.Wrap(err, "facsimile is not valid base64").Error()}
	}
	return b, nil
}

func (c *SOAPClient) RetrieveReportingPeriods(ctx context.Context, dataSeries string) ([]string, error) {
	return c.strings(ctx, string(protocol.EndpointReportingPeriods), p("dataSeries", dataSeries))
}

func (c *SOAPClient) RetrieveUBPRReportingPeriods(ctx context.Context) ([]string, error) {
	return c.strings(ctx, string(protocol.EndpointUBPRReportingPeriods))
}

func (c *SOAPClient) RetrieveFacsimile(ctx context.Context, dataSeries, fiIDType, fiID, reportingPeriodEndDate, facsimileFormat string) ([]byte, error) {
	return c.binary(ctx, string(protocol.EndpointFacsimile),
		p("dataSeries", dataSeries),
		p("fiIDType", fiIDType),
		p("fiID", fiID),
		p("reportingPeriodEndDate", reportingPeriodEndDate),
		p("facsimileFormat", facsimileFormat),
	)
}

func (c *SOAPClient) RetrieveUBPRXBRLFacsimile(ctx context.Context, fiIDType, fiID, reportingPeriodEndDate string) ([]byte, error) {
	return c.binary(ctx, string(protocol.EndpointUBPRFacsimile),
		p("fiIDType", fiIDType),
		p("fiID", fiID),
		p("reportingPeriodEndDate", reportingPeriodEndDate),
	)
}

func (c *SOAPClient) RetrievePanelOfReporters(ctx context.Context, dataSeries, reportingPeriodEndDate string) ([]protocol.InstitutionRecord, error) {
	result, err := c.call(ctx, string(protocol.EndpointPanelOfReporters),
		p("dataSeries", dataSeries),
		p("reportingPeriodEndDate", reportingPeriodEndDate),
	)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []protocol.InstitutionRecord{}, nil
	}
	records := make([]protocol.InstitutionRecord, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		records = append(records, protocol.InstitutionRecord(n.object()))
	}
	return records, nil
}

func (c *SOAPClient) RetrieveFilersSinceDate(ctx context.Context, dataSeries, lastUpdateDateTime, reportingPeriodEndDate string) ([]string, error) {
	return c.strings(ctx, string(protocol.EndpointFilersSinceDate),
		p("dataSeries", dataSeries),
		p("lastUpdateDateTime", lastUpdateDateTime),
		p("reportingPeriodEndDate", reportingPeriodEndDate),
	)
}

func (c *SOAPClient) RetrieveFilersSubmissionDateTime(ctx context.Context, dataSeries, lastUpdateDateTime, reportingPeriodEndDate string) ([]protocol.Submission, error) {
	result, err := c.call(ctx, string(protocol.EndpointFilersSubmissionDateTime),
		p("dataSeries", dataSeries),
		p("lastUpdateDateTime", lastUpdateDateTime),
		p("reportingPeriodEndDate", reportingPeriodEndDate),
	)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []protocol.Submission{}, nil
	}
	subs := make([]protocol.Submission, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		rec := protocol.InstitutionRecord(n.object())
		subs = append(subs, protocol.Submission{
			InstitutionID: rec.ID(),
			SubmittedAt:   rec.String(protocol.FieldDateTime),
		})
	}
	return subs, nil
}
