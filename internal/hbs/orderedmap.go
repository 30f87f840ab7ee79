package hbs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OrderedMap is a JSON object value that remembers the key order the
// document presented it in. A plain map[string]interface{} can't: Go
// map iteration order is random, and spec's "ordered mapping" object
// type (parallel to "ordered array") plus Handlebars' own #each-over-
// object semantics both iterate an object in source order, not
// alphabetically.
type OrderedMap struct {
	keys []string
	vals map[string]interface{}
}

func newOrderedMap() *OrderedMap {
	return &OrderedMap{vals: make(map[string]interface{})}
}

func (m *OrderedMap) set(key string, val interface{}) {
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = val
}

// Get looks up key the same way a map[string]interface{} index would.
func (m *OrderedMap) Get(key string) (interface{}, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns the object's keys in document order.
func (m *OrderedMap) Keys() []string {
	return m.keys
}

func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// DecodeOrdered parses a JSON document the way encoding/json's
// Unmarshal-into-interface{} does — objects become map values, arrays
// become []interface{}, numbers become float64 — except objects decode
// to *OrderedMap instead of map[string]interface{} so #each over an
// object preserves the document's key order.
func DecodeOrdered(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	return decodeOrderedValue(dec)
}

func decodeOrderedValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeOrderedToken(dec, tok)
}

func decodeOrderedToken(dec *json.Decoder, tok json.Token) (interface{}, error) {
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		return decodeOrderedObject(dec)
	case '[':
		return decodeOrderedArray(dec)
	default:
		return nil, fmt.Errorf("unexpected JSON delimiter %q", delim)
	}
}

func decodeOrderedObject(dec *json.Decoder) (interface{}, error) {
	m := newOrderedMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected JSON object key, got %v", keyTok)
		}
		val, err := decodeOrderedValue(dec)
		if err != nil {
			return nil, err
		}
		m.set(key, val)
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return nil, err
	}
	return m, nil
}

func decodeOrderedArray(dec *json.Decoder) (interface{}, error) {
	arr := []interface{}{}
	for dec.More() {
		val, err := decodeOrderedValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return nil, err
	}
	return arr, nil
}
