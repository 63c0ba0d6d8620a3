package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ColumnRates is an ordered column -> missing rate mapping. It encodes as a JSON
// object whose keys keep slice order, so the rate ranking survives serialization.
type ColumnRates []ColumnRate

// Get returns the rate recorded for column
func (c ColumnRates) Get(column string) (float64, bool) {
	for _, r := range c {
		if r.Column == column {
			return r.MissingRate, true
		}
	}
	return 0, false
}

// MarshalJSON implements json.Marshaler
func (c ColumnRates) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(c), func(i int) (string, any) {
		return c[i].Column, c[i].MissingRate
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (c *ColumnRates) UnmarshalJSON(data []byte) error {
	out := ColumnRates{}
	err := unmarshalOrdered(data, func(key string, raw json.RawMessage) error {
		var rate float64
		if err := json.Unmarshal(raw, &rate); err != nil {
			return fmt.Errorf("missing rate for %q: %w", key, err)
		}
		out = append(out, ColumnRate{Column: key, MissingRate: rate})
		return nil
	})
	if err != nil {
		return err
	}
	*c = out
	return nil
}

// OutlierSummaries is an ordered column -> outlier summary mapping
type OutlierSummaries []ColumnOutliers

// Get returns the summary recorded for column
func (o OutlierSummaries) Get(column string) (OutlierSummary, bool) {
	for _, s := range o {
		if s.Column == column {
			return s.OutlierSummary, true
		}
	}
	return OutlierSummary{}, false
}

// MarshalJSON implements json.Marshaler
func (o OutlierSummaries) MarshalJSON() ([]byte, error) {
	return marshalOrdered(len(o), func(i int) (string, any) {
		return o[i].Column, o[i].OutlierSummary
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (o *OutlierSummaries) UnmarshalJSON(data []byte) error {
	out := OutlierSummaries{}
	err := unmarshalOrdered(data, func(key string, raw json.RawMessage) error {
		var s OutlierSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("outlier summary for %q: %w", key, err)
		}
		out = append(out, ColumnOutliers{Column: key, OutlierSummary: s})
		return nil
	})
	if err != nil {
		return err
	}
	*o = out
	return nil
}

func marshalOrdered(n int, entry func(i int) (string, any)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, value := entry(i)
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func unmarshalOrdered(data []byte, each func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := each(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
