package normalize

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/openfinreg/ffiec-data-connect/protocol"
)

// maxLoggedViolations caps how many validation messages go into one log line.
const maxLoggedViolations = 5

// Result is the outcome of one normalization.
type Result struct {
	// Payload is the normalized payload, or the input itself when nothing
	// was normalized.
	Payload  any
	Endpoint protocol.Endpoint
	Source   protocol.Protocol
	// Normalized is false when the payload came from the legacy protocol or
	// the endpoint has no rule.
	Normalized bool
	// Transformations counts the values that actually changed.
	Transformations int
	// Warnings lists rule gaps and shape violations left after coercion.
	Warnings []string
}

// Normalizer rewrites REST payloads into the legacy representation. It holds
// no state besides its logger and is safe for concurrent use.
type Normalizer struct {
	lggr logger.SugaredLogger
}

func NewNormalizer(lggr logger.Logger) *Normalizer {
	return &Normalizer{lggr: logger.Sugared(lggr).Named("Normalizer")}
}

// Normalize coerces a REST payload for endpoint into the legacy shape. Legacy
// payloads are returned as is. Unmapped endpoints are logged and returned
// unchanged. The input is never mutated.
func (n *Normalizer) Normalize(payload any, endpoint protocol.Endpoint, source protocol.Protocol) Result {
	res := Result{Payload: payload, Endpoint: endpoint, Source: source}
	if source != protocol.REST {
		n.lggr.Debugw("Skipping normalization of canonical payload", "endpoint", endpoint, "protocol", source)
		return res
	}

	rule, ok := rules[endpoint]
	if !ok {
		known := maps.Keys(rules)
		slices.Sort(known)
		n.lggr.Warnw("No normalization rules for endpoint; payload may not match the legacy format",
			"endpoint", endpoint, "knownEndpoints", known)
		res.Warnings = append(res.Warnings, fmt.Sprintf("no normalization rules for endpoint %q", endpoint))
		return res
	}

	res.Normalized = true
	if rule.PassThrough || isEmpty(payload) {
		return res
	}

	res.Payload, res.Transformations = n.apply(rule, payload, string(endpoint))
	if res.Transformations > 0 {
		n.lggr.Debugw("Normalized REST payload", "endpoint", endpoint, "transformations", res.Transformations)
	}

	if violations := Validate(endpoint, res.Payload); len(violations) > 0 {
		logged := violations
		if len(logged) > maxLoggedViolations {
			logged = logged[:maxLoggedViolations]
		}
		n.lggr.Warnw("Normalized payload failed validation", "endpoint", endpoint,
			"violations", len(violations), "first", strings.Join(logged, "; "))
		res.Warnings = append(res.Warnings, violations...)
	}
	return res
}

func isEmpty(payload any) bool {
	switch p := payload.(type) {
	case nil:
		return true
	case []any:
		return len(p) == 0
	case []map[string]any:
		return len(p) == 0
	case []string:
		return len(p) == 0
	case map[string]any:
		return len(p) == 0
	case string:
		return p == ""
	case []byte:
		return len(p) == 0
	}
	return false
}

func (n *Normalizer) apply(rule Rule, payload any, context string) (any, int) {
	switch p := payload.(type) {
	case []any:
		out := make([]any, len(p))
		count := 0
		for i, item := range p {
			if rule.Items != nil {
				coerced := rule.Items(item)
				out[i] = coerced
				if changed(item, coerced) {
					count++
				}
				continue
			}
			if obj, ok := item.(map[string]any); ok {
				var c int
				out[i], c = n.object(rule, obj, fmt.Sprintf("%s[%d]", context, i))
				count += c
				continue
			}
			out[i] = item
		}
		return out, count
	case []string:
		if rule.Items == nil {
			return p, 0
		}
		out := make([]string, len(p))
		count := 0
		for i, item := range p {
			out[i] = rule.Items(item)
			if changed(item, out[i]) {
				count++
			}
		}
		return out, count
	case []map[string]any:
		out := make([]map[string]any, len(p))
		count := 0
		for i, obj := range p {
			var c int
			out[i], c = n.object(rule, obj, fmt.Sprintf("%s[%d]", context, i))
			count += c
		}
		return out, count
	case map[string]any:
		return n.object(rule, p, context)
	}
	return payload, 0
}

// object returns a copy of obj with every mapped field coerced.
func (n *Normalizer) object(rule Rule, obj map[string]any, context string) (map[string]any, int) {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	count := 0
	for field, coerce := range rule.Fields {
		v, ok := obj[field]
		if !ok {
			continue
		}
		coerced := coerce(v)
		if !changed(v, coerced) {
			continue
		}
		out[field] = coerced
		count++
		n.lggr.Debugw("Normalized field", "field", context+"."+field, "from", fmt.Sprintf("%T(%v)", v, v), "to", coerced)
	}
	return out, count
}

// changed reports whether coercion altered the value. Only an identical
// string counts as unchanged.
func changed(original any, coerced string) bool {
	s, ok := original.(string)
	return !ok || s != coerced
}
