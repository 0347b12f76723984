package rest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

func facsimileParams(series protocol.Series, id, period string) params {
	p := params{
		hdrFIIDType:      "ID_RSSD",
		hdrFIID:          id,
		hdrPeriodEndDate: period,
	}
	// The UBPR operation is XBRL only and takes neither a series nor a format.
	if series == protocol.SeriesCall {
		p[hdrDataSeries] = series.DataSeries()
		p[hdrFacsimileFormat] = "XBRL"
	}
	return p
}

func facsimileEndpoint(series protocol.Series) protocol.Endpoint {
	if series == protocol.SeriesUBPR {
		return protocol.EndpointUBPRFacsimile
	}
	return protocol.EndpointFacsimile
}

// facsimile walks the candidates for series in order and returns the first
// 200 body. 404 and 405 move on to the next candidate. Credential and rate
// limit failures stop the search at once; other failures are remembered and
// the first of them is returned if no candidate answers.
func (a *Adapter) facsimile(ctx context.Context, series protocol.Series, id, period string) ([]byte, error) {
	logical := facsimileEndpoint(series)
	p := facsimileParams(series, id, period)
	lggr := a.lggr.With("series", series, "institutionID", id, "period", period)

	var firstErr error
	for _, cand := range a.candidates[series] {
		resp, err := a.send(ctx, cand.Method, cand.Endpoint, logical, p)
		if err == nil {
			switch resp.status {
			case http.StatusOK:
				lggr.Infow("Retrieved facsimile", "endpoint", cand.Endpoint, "method", cand.Method, "bytes", len(resp.body))
				return a.decodeFacsimile(resp), nil
			case http.StatusNotFound, http.StatusMethodNotAllowed:
				promFacsimileFallbacks.WithLabelValues(string(series), cand.Endpoint, cand.Method).Inc()
				lggr.Debugw("Facsimile candidate not available; trying next", "endpoint", cand.Endpoint,
					"method", cand.Method, "status", resp.status)
				continue
			case http.StatusNoContent:
				err = &protocol.NoDataError{Endpoint: logical, Reason: "empty facsimile response"}
			default:
				err = statusError(logical, resp)
			}
		}

		if ctx.Err() != nil || errors.Is(err, protocol.ErrCredential) || errors.Is(err, protocol.ErrRateLimit) {
			return nil, err
		}
		lggr.Warnw("Facsimile candidate failed; trying next", "endpoint", cand.Endpoint, "method", cand.Method, "err", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return nil, &protocol.NoDataError{
		Endpoint: logical,
		Reason:   fmt.Sprintf("no facsimile for institution %s in period %s", id, period),
	}
}

// decodeFacsimile unwraps a JSON string body holding base64 XBRL. Anything
// else is returned untouched.
func (a *Adapter) decodeFacsimile(resp *response) []byte {
	if !strings.Contains(strings.ToLower(resp.contentType), "json") {
		return resp.body
	}
	var encoded string
	if err := json.Unmarshal(resp.body, &encoded); err != nil {
		a.lggr.Warnw("Facsimile JSON body is not a string; returning raw body", "err", err)
		return resp.body
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		a.lggr.Warnw("Failed to decode base64 facsimile; returning raw body", "err", err)
		return resp.body
	}
	a.lggr.Debugw("Decoded base64 facsimile", "bytes", len(decoded))
	return decoded
}
