package rest

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

const statement = `<xbrli:xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance"/>`

// candidateServer answers each path+method with a fixed status.
func candidateServer(t *testing.T, statuses map[string]int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/public/")
		status, ok := statuses[key]
		if !ok {
			t.Errorf("unexpected candidate %s", key)
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = fmt.Fprint(w, statement)
		}
	}
}

func withCandidates(series protocol.Series, cands ...Candidate) func(*ClientOpts) {
	return func(o *ClientOpts) {
		o.FacsimileCandidates = map[protocol.Series][]Candidate{series: cands}
	}
}

func paths(hits []hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.method + " " + strings.TrimPrefix(h.path, "/public/")
	}
	return out
}

func Test_Facsimile_Fallback(t *testing.T) {
	cands := []Candidate{
		{Endpoint: "A", Method: http.MethodGet},
		{Endpoint: "B", Method: http.MethodPost},
		{Endpoint: "C", Method: http.MethodGet},
		{Endpoint: "D", Method: http.MethodGet},
	}

	t.Run("returns the first 200 and stops", func(t *testing.T) {
		a, rec, lim := newTestAdapter(t, candidateServer(t, map[string]int{
			"GET A":  http.StatusNotFound,
			"POST B": http.StatusNotFound,
			"GET C":  http.StatusOK,
			"GET D":  http.StatusOK,
		}), withCandidates(protocol.SeriesCall, cands...))

		body, err := a.Facsimile(context.Background(), "480228", "2023-12-31", protocol.SeriesCall)
		require.NoError(t, err)
		assert.Equal(t, statement, string(body))
		assert.Equal(t, []string{"GET A", "POST B", "GET C"}, paths(rec.Hits()))
		assert.EqualValues(t, 3, lim.calls.Load())
	})

	t.Run("skips method not allowed", func(t *testing.T) {
		a, rec, _ := newTestAdapter(t, candidateServer(t, map[string]int{
			"GET A":  http.StatusMethodNotAllowed,
			"POST B": http.StatusOK,
		}), withCandidates(protocol.SeriesCall, cands...))

		body, err := a.Facsimile(context.Background(), "480228", "2023-12-31", protocol.SeriesCall)
		require.NoError(t, err)
		assert.Equal(t, statement, string(body))
		assert.Len(t, rec.Hits(), 2)
	})

	t.Run("credential failures stop the search", func(t *testing.T) {
		a, rec, _ := newTestAdapter(t, candidateServer(t, map[string]int{
			"GET A": http.StatusUnauthorized,
		}), withCandidates(protocol.SeriesCall, cands...))

		_, err := a.Facsimile(context.Background(), "480228", "2023-12-31", protocol.SeriesCall)
		require.ErrorIs(t, err, protocol.ErrCredential)
		assert.Len(t, rec.Hits(), 1)
	})

	t.Run("rate limit failures stop the search", func(t *testing.T) {
		a, rec, _ := newTestAdapter(t, candidateServer(t, map[string]int{
			"GET A":  http.StatusNotFound,
			"POST B": http.StatusTooManyRequests,
		}), withCandidates(protocol.SeriesCall, cands...))

		_, err := a.Facsimile(context.Background(), "480228", "2023-12-31", protocol.SeriesCall)
		require.ErrorIs(t, err, protocol.ErrRateLimit)
		assert.Len(t, rec.Hits(), 2)
	})

	t.Run("other failures are remembered", func(t *testing.T) {
		a, rec, _ := newTestAdapter(t, candidateServer(t, map[string]int{
			"GET A":  http.StatusInternalServerError,
			"POST B": http.StatusBadGateway,
			"GET C":  http.StatusNotFound,
			"GET D":  http.StatusNotFound,
		}), withCandidates(protocol.SeriesCall, cands...))

		_, err := a.Facsimile(context.Background(), "480228", "2023-12-31", protocol.SeriesCall)
		require.ErrorIs(t, err, protocol.ErrConnection)
		assert.Len(t, rec.Hits(), 4)
	})

	t.Run("a later success wins over an earlier failure", func(t *testing.T) {
		a, _, _ := newTestAdapter(t, candidateServer(t, map[string]int{
			"GET A":  http.StatusInternalServerError,
			"POST B": http.StatusOK,
		}), withCandidates(protocol.SeriesCall, cands...))

		body, err := a.Facsimile(context.Background(), "480228", "2023-12-31", protocol.SeriesCall)
		require.NoError(t, err)
		assert.Equal(t, statement, string(body))
	})

	t.Run("exhausted candidates mean no data", func(t *testing.T) {
		a, rec, _ := newTestAdapter(t, candidateServer(t, map[string]int{
			"GET A":  http.StatusNotFound,
			"POST B": http.StatusNotFound,
			"GET C":  http.StatusMethodNotAllowed,
			"GET D":  http.StatusNotFound,
		}), withCandidates(protocol.SeriesCall, cands...))

		_, err := a.Facsimile(context.Background(), "480228", "2023-12-31", protocol.SeriesCall)
		require.ErrorIs(t, err, protocol.ErrNoData)
		assert.Contains(t, err.Error(), "480228")
		assert.Len(t, rec.Hits(), 4)
	})
}

func Test_Facsimile_Headers(t *testing.T) {
	t.Run("call", func(t *testing.T) {
		a, rec, _ := newTestAdapter(t, candidateServer(t, map[string]int{
			"GET RetrieveFacsimile": http.StatusOK,
		}))
		_, err := a.Facsimile(context.Background(), "0480228", "4Q2023", "CALL")
		require.NoError(t, err)
		hits := rec.Hits()
		require.Len(t, hits, 1)
		h := hits[0].header
		assert.Equal(t, "Call", h.Get("dataSeries"))
		assert.Equal(t, "ID_RSSD", h.Get("fiIdType"))
		assert.Equal(t, "480228", h.Get("fiId"))
		assert.Equal(t, "12/31/2023", h.Get("reportingPeriodEndDate"))
		assert.Equal(t, "XBRL", h.Get("facsimileFormat"))
	})

	t.Run("ubpr", func(t *testing.T) {
		a, rec, _ := newTestAdapter(t, candidateServer(t, map[string]int{
			"GET RetrieveUBPRXBRLFacsimile": http.StatusOK,
		}))
		_, err := a.Facsimile(context.Background(), "480228", "2024-06-30", protocol.SeriesUBPR)
		require.NoError(t, err)
		hits := rec.Hits()
		require.Len(t, hits, 1)
		h := hits[0].header
		assert.Empty(t, h.Get("dataSeries"))
		assert.Empty(t, h.Get("facsimileFormat"))
		assert.Equal(t, "480228", h.Get("fiId"))
		assert.Equal(t, "6/30/2024", h.Get("reportingPeriodEndDate"))
	})

	t.Run("validation happens before any request", func(t *testing.T) {
		a, rec, lim := newTestAdapter(t, candidateServer(t, nil))
		for _, tc := range []struct{ id, period string }{
			{"abc", "2023-12-31"},
			{"0", "2023-12-31"},
			{"123456789", "2023-12-31"},
			{"480228", "2023-11-30"},
			{"480228", "5Q2023"},
		} {
			_, err := a.Facsimile(context.Background(), tc.id, tc.period, protocol.SeriesCall)
			require.ErrorIs(t, err, protocol.ErrValidation, "%s %s", tc.id, tc.period)
		}
		assert.Empty(t, rec.Hits())
		assert.Zero(t, lim.calls.Load())
	})
}

func Test_Facsimile_Decoding(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(statement))
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"base64 json string", "application/json; charset=utf-8", `"` + encoded + `"`, statement},
		{"raw xml", "text/xml", statement, statement},
		{"json but not a string", "application/json", `{"data": 1}`, `{"data": 1}`},
		{"json string but not base64", "application/json", `"not base64!"`, `"not base64!"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = fmt.Fprint(w, tt.body)
			})
			body, err := a.Facsimile(context.Background(), "480228", "2023-12-31", protocol.SeriesCall)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}
