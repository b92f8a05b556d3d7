package message

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"

	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

// envelope is the wire form of a submitted message
type envelope struct {
	Testcase   string                     `json:"testcase"`
	Results    map[string]json.RawMessage `json:"results"`
	Assertions map[string]json.RawMessage `json:"assertions"`
	Metrics    map[string]json.Number     `json:"metrics"`
}

// decode parses a JSON message. Testcase names and every object key are
// normalized to NFC so visually identical names compare equal.
func decode(payload []byte) (*domain.ElementData, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, errs.Malformed("empty payload")
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, errs.Malformed("invalid message: %v", err)
	}
	if dec.More() {
		return nil, errs.Malformed("trailing data after message")
	}

	testcase := norm.NFC.String(strings.TrimSpace(env.Testcase))
	if testcase == "" {
		return nil, errs.Malformed("missing testcase name")
	}

	results, err := decodeKeys(env.Results, "results")
	if err != nil {
		return nil, err
	}
	for key := range results {
		if strings.HasPrefix(key, domain.AssertionKeyPrefix) {
			return nil, errs.Malformed("results: key %q uses the reserved %q prefix", key, domain.AssertionKeyPrefix)
		}
	}
	assertions, err := decodeKeys(env.Assertions, "assertions")
	if err != nil {
		return nil, err
	}

	data := &domain.ElementData{
		Testcase:   testcase,
		Results:    results,
		Assertions: assertions,
	}
	if len(env.Metrics) > 0 {
		data.Metrics = make(map[string]float64, len(env.Metrics))
		for k, n := range env.Metrics {
			f, err := n.Float64()
			if err != nil {
				return nil, errs.Malformed("metric %q: %v", k, err)
			}
			data.Metrics[norm.NFC.String(k)] = f
		}
	}
	return data, nil
}

func decodeKeys(raw map[string]json.RawMessage, section string) (map[string]domain.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]domain.Value, len(raw))
	for k, msg := range raw {
		key := norm.NFC.String(k)
		if key == "" {
			return nil, errs.Malformed("%s: empty key", section)
		}
		if _, dup := out[key]; dup {
			return nil, errs.Malformed("%s: duplicate key %q after normalization", section, key)
		}
		var v domain.Value
		if err := json.Unmarshal(msg, &v); err != nil {
			return nil, errs.Malformed("%s.%s: %v", section, key, err)
		}
		out[key] = normalize(v)
	}
	return out, nil
}

func normalize(v domain.Value) domain.Value {
	switch v.Kind {
	case domain.KindString:
		return domain.String(norm.NFC.String(v.Str))
	case domain.KindArray:
		items := make([]domain.Value, len(v.Items))
		for i, item := range v.Items {
			items[i] = normalize(item)
		}
		return domain.Array(items...)
	case domain.KindObject:
		fields := make(map[string]domain.Value, len(v.Fields))
		for k, item := range v.Fields {
			fields[norm.NFC.String(k)] = normalize(item)
		}
		return domain.Object(fields)
	}
	return v
}
