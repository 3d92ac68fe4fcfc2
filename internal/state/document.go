package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/xid"
)

var timeNow = time.Now

// document is the JSON object form of a stored record. Numbers are kept as
// json.Number so that filter values compare by their textual form.
type document map[string]any

func toDocument(v any) (document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	return decodeDocument(data)
}

func decodeDocument(data []byte) (document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if doc == nil {
		return nil, errors.New("decode record: not a JSON object")
	}

	return doc, nil
}

func fromDocument[T any](doc document) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	return &rec, nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}

	return out, nil
}

func normalizeMap[M ~map[string]any](m M) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("normalize %q: %w", k, err)
		}
		out[k] = nv
	}

	return out, nil
}

func (d document) lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}

	return cur, true
}

// matches expects filter values already passed through normalize.
func (d document) matches(filter map[string]any) bool {
	for path, want := range filter {
		got, ok := d.lookup(path)
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}

	return true
}

// merge applies normalized fields on top of d. Store-owned keys are kept.
func (d document) merge(fields map[string]any) {
	for k, v := range fields {
		if k == FieldID || k == FieldChatID {
			continue
		}
		d[k] = v
	}
	d.touch()
}

func (d document) touch() {
	d[FieldUpdatedAt] = timeNow().UTC().Format(time.RFC3339Nano)
}

func (d document) id() string {
	id, _ := d[FieldID].(string)
	return id
}

func (d document) chatID() int64 {
	switch v := d[FieldChatID].(type) {
	case json.Number:
		n, _ := v.Int64()
		return n
	case float64:
		return int64(v)
	case int64:
		return v
	}

	return 0
}

func (d document) updatedAt() time.Time {
	s, _ := d[FieldUpdatedAt].(string)
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return ts
}

func newID() string {
	return xid.New().String()
}

func newDocument(rec any) (document, error) {
	doc, err := toDocument(rec)
	if err != nil {
		return nil, err
	}

	doc[FieldID] = newID()
	doc.touch()

	return doc, nil
}
