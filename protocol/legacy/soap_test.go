package legacy

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

func envelope(inner string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<soap:Body>` + inner + `</soap:Body></soap:Envelope>`
}

func result(op, inner string) string {
	return envelope(fmt.Sprintf(`<%[1]sResponse xmlns="%[2]s"><%[1]sResult>%[3]s</%[1]sResult></%[1]sResponse>`,
		op, serviceNamespace, inner))
}

type captured struct {
	action string
	raw    string
	body   node
}

// soapServer answers every request with status and body and records what it
// received.
func soapServer(t *testing.T, status int, body string) (*SOAPClient, func() []captured) {
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Error(err)
		}
		var env node
		if err := xml.Unmarshal(raw, &env); err != nil {
			t.Errorf("request is not XML: %v", err)
		}
		mu.Lock()
		reqs = append(reqs, captured{action: r.Header.Get("SOAPAction"), raw: string(raw), body: env})
		mu.Unlock()

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	c, err := NewSOAPClient(SOAPClientOpts{
		Logger:      logger.Test(t),
		Credentials: &protocol.WebserviceCredentials{Username: "user", Password: "secret"},
		URL:         srv.URL,
	})
	require.NoError(t, err)
	return c, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func Test_NewSOAPClient(t *testing.T) {
	_, err := NewSOAPClient(SOAPClientOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger is required")
	assert.Contains(t, err.Error(), "webservice credentials are required")

	_, err = NewSOAPClient(SOAPClientOpts{
		Logger:      logger.Test(t),
		Credentials: &protocol.WebserviceCredentials{Username: "user"},
		Timeout:     -time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")
	assert.Contains(t, err.Error(), "timeout must not be negative")

	c, err := NewSOAPClient(SOAPClientOpts{
		Logger:      logger.Test(t),
		Credentials: &protocol.WebserviceCredentials{Username: "user", Password: "secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultSOAPURL, c.url)
	assert.Equal(t, DefaultSOAPTimeout, c.timeout)
}

func Test_SOAPClient_Request(t *testing.T) {
	c, reqs := soapServer(t, http.StatusOK, result("RetrieveFacsimile", ""))

	_, err := c.RetrieveFacsimile(context.Background(), "Call", "ID_RSSD", "480228", "12/31/2023", "XBRL")
	require.NoError(t, err)

	got := reqs()
	require.Len(t, got, 1)
	assert.Equal(t, `"`+serviceNamespace+`/RetrieveFacsimile"`, got[0].action)

	env := got[0].body
	assert.Equal(t, "Envelope", env.XMLName.Local)
	assert.Equal(t, soapNamespace, env.XMLName.Space)

	header := env.child("Header")
	require.NotNil(t, header)
	token := header.child("Security").child("UsernameToken")
	require.NotNil(t, token)
	assert.Equal(t, "user", token.child("Username").Text)
	assert.Equal(t, "secret", token.child("Password").Text)

	op := env.child("Body").child("RetrieveFacsimile")
	require.NotNil(t, op)
	assert.Equal(t, serviceNamespace, op.XMLName.Space)
	var names, values []string
	for _, n := range op.Nodes {
		names = append(names, n.XMLName.Local)
		values = append(values, n.Text)
		assert.Equal(t, serviceNamespace, n.XMLName.Space)
	}
	assert.Equal(t, []string{"dataSeries", "fiIDType", "fiID", "reportingPeriodEndDate", "facsimileFormat"}, names)
	assert.Equal(t, []string{"Call", "ID_RSSD", "480228", "12/31/2023", "XBRL"}, values)
	assert.NotContains(t, got[0].raw, `xmlns=""`)
}

func Test_SOAPClient_Results(t *testing.T) {
	ctx := context.Background()

	t.Run("reporting periods", func(t *testing.T) {
		c, _ := soapServer(t, http.StatusOK, result("RetrieveReportingPeriods",
			`<string>12/31/2023</string><string>9/30/2023</string>`))
		periods, err := c.RetrieveReportingPeriods(ctx, "Call")
		require.NoError(t, err)
		assert.Equal(t, []string{"12/31/2023", "9/30/2023"}, periods)
	})

	t.Run("ubpr reporting periods take no parameters", func(t *testing.T) {
		c, reqs := soapServer(t, http.StatusOK, result("RetrieveUBPRReportingPeriods", `<string>6/30/2024</string>`))
		periods, err := c.RetrieveUBPRReportingPeriods(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"6/30/2024"}, periods)
		op := reqs()[0].body.child("Body").child("RetrieveUBPRReportingPeriods")
		require.NotNil(t, op)
		assert.Empty(t, op.Nodes)
	})

	t.Run("filers since date", func(t *testing.T) {
		c, _ := soapServer(t, http.StatusOK, result("RetrieveFilersSinceDate", `<int>480228</int><int>852320</int>`))
		ids, err := c.RetrieveFilersSinceDate(ctx, "Call", "12/1/2023", "12/31/2023")
		require.NoError(t, err)
		assert.Equal(t, []string{"480228", "852320"}, ids)
	})

	t.Run("panel of reporters", func(t *testing.T) {
		c, _ := soapServer(t, http.StatusOK, result("RetrievePanelOfReporters", `
			<ReportingFinancialInstitution>
				<ID_RSSD>480228</ID_RSSD>
				<Name>BANK OF AMERICA</Name>
				<ZIP>28255</ZIP>
				<HasFiledForReportingPeriod>true</HasFiledForReportingPeriod>
				<OCCChartNumber xsi:nil="true"/>
			</ReportingFinancialInstitution>
			<ReportingFinancialInstitution>
				<ID_RSSD>852320</ID_RSSD>
				<ZIP>02886</ZIP>
			</ReportingFinancialInstitution>`))
		records, err := c.RetrievePanelOfReporters(ctx, "Call", "12/31/2023")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "480228", records[0].ID())
		assert.Equal(t, "BANK OF AMERICA", records[0].String(protocol.FieldName))
		assert.Equal(t, "true", records[0].String(protocol.FieldHasFiledForPeriod))
		assert.NotContains(t, records[0], protocol.FieldOCCChartNumber)
		assert.Equal(t, "02886", records[1].String(protocol.FieldZIP))
	})

	t.Run("filer submissions", func(t *testing.T) {
		c, _ := soapServer(t, http.StatusOK, result("RetrieveFilersSubmissionDateTime", `
			<RetrieveFilersDateTime><ID_RSSD>480228</ID_RSSD><DateTime>1/15/2024 10:23:11 AM</DateTime></RetrieveFilersDateTime>`))
		subs, err := c.RetrieveFilersSubmissionDateTime(ctx, "Call", "10/1/2023", "12/31/2023")
		require.NoError(t, err)
		assert.Equal(t, []protocol.Submission{{InstitutionID: "480228", SubmittedAt: "1/15/2024 10:23:11 AM"}}, subs)
	})

	t.Run("facsimile is base64 decoded", func(t *testing.T) {
		doc := `<xbrli:xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance"/>`
		enc := base64.StdEncoding.EncodeToString([]byte(doc))
		// line-wrapped the way some servers emit it
		wrapped := enc[:10] + "\n  " + enc[10:]
		c, _ := soapServer(t, http.StatusOK, result("RetrieveUBPRXBRLFacsimile", wrapped))
		body, err := c.RetrieveUBPRXBRLFacsimile(ctx, "ID_RSSD", "480228", "12/31/2023")
		require.NoError(t, err)
		assert.Equal(t, doc, string(body))
	})

	t.Run("facsimile that is not base64", func(t *testing.T) {
		c, _ := soapServer(t, http.StatusOK, result("RetrieveFacsimile", "!!!"))
		_, err := c.RetrieveFacsimile(ctx, "Call", "ID_RSSD", "480228", "12/31/2023", "XBRL")
		require.ErrorIs(t, err, protocol.ErrProtocol)
	})

	t.Run("missing result is empty", func(t *testing.T) {
		c, _ := soapServer(t, http.StatusOK, envelope(
			fmt.Sprintf(`<RetrieveFilersSinceDateResponse xmlns="%s"/>`, serviceNamespace)))
		ids, err := c.RetrieveFilersSinceDate(ctx, "Call", "12/1/2023", "12/31/2023")
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.NotNil(t, ids)

		c, _ = soapServer(t, http.StatusOK, envelope(fmt.Sprintf(
			`<RetrieveFacsimileResponse xmlns="%s"><RetrieveFacsimileResult xsi:nil="true"/></RetrieveFacsimileResponse>`,
			serviceNamespace)))
		body, err := c.RetrieveFacsimile(ctx, "Call", "ID_RSSD", "480228", "12/31/2023", "XBRL")
		require.NoError(t, err)
		assert.Empty(t, body)
	})
}

func Test_SOAPClient_Errors(t *testing.T) {
	ctx := context.Background()
	faultBody := func(msg string) string {
		return envelope(`<soap:Fault><faultcode>soap:Server</faultcode><faultstring>` + msg + `</faultstring></soap:Fault>`)
	}

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"authentication fault", http.StatusInternalServerError, faultBody("Authentication failed for user"), protocol.ErrCredential},
		{"other fault", http.StatusInternalServerError, faultBody("Object reference not set"), protocol.ErrProtocol},
		{"unauthorized", http.StatusUnauthorized, "denied", protocol.ErrCredential},
		{"forbidden", http.StatusForbidden, "", protocol.ErrCredential},
		{"server error without fault", http.StatusServiceUnavailable, "<html/>", protocol.ErrConnection},
		{"unexpected status", http.StatusNotFound, "gone", protocol.ErrProtocol},
		{"malformed response", http.StatusOK, "not xml at all", protocol.ErrProtocol},
		{"wrong response element", http.StatusOK, result("SomethingElse", ""), protocol.ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := soapServer(t, tt.status, tt.body)
			periods, err := c.RetrieveReportingPeriods(ctx, "Call")
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, periods)

			records, err := c.RetrievePanelOfReporters(ctx, "Call", "12/31/2023")
			require.Error(t, err)
			assert.Nil(t, records)

			subs, err := c.RetrieveFilersSubmissionDateTime(ctx, "Call", "10/01/2023", "12/31/2023")
			require.Error(t, err)
			assert.Nil(t, subs)
		})
	}

	t.Run("fault text is kept", func(t *testing.T) {
		c, _ := soapServer(t, http.StatusInternalServerError, faultBody("Object reference not set"))
		_, err := c.RetrieveReportingPeriods(ctx, "Call")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Object reference not set")
	})
}

func Test_SOAPClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewSOAPClient(SOAPClientOpts{
		Logger:      logger.Test(t),
		Credentials: &protocol.WebserviceCredentials{Username: "user", Password: "secret"},
		URL:         srv.URL,
		Timeout:     50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.RetrieveReportingPeriods(context.Background(), "Call")
	require.ErrorIs(t, err, protocol.ErrConnection)
	assert.True(t, strings.Contains(err.Error(), "timed out"), err.Error())
}
