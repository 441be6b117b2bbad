package order

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// Extra holds the JSON members of an object that its model has no field for.
type Extra map[string]json.RawMessage

var (
	orderKeys     = jsonKeys(reflect.TypeOf(Order{}))
	hotelKeys     = jsonKeys(reflect.TypeOf(Hotel{}))
	transportKeys = jsonKeys(reflect.TypeOf(Transport{}))
)

func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	var p plain
	extra, err := decodeWithExtra(data, &p, orderKeys)
	if err != nil {
		return err
	}
	*o = Order(p)
	o.Extra = extra
	return nil
}

func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return WithMembers(plain(o), o.Extra)
}

func (h *Hotel) UnmarshalJSON(data []byte) error {
	type plain Hotel
	var p plain
	extra, err := decodeWithExtra(data, &p, hotelKeys)
	if err != nil {
		return err
	}
	*h = Hotel(p)
	h.Extra = extra
	return nil
}

func (h Hotel) MarshalJSON() ([]byte, error) {
	type plain Hotel
	return WithMembers(plain(h), h.Extra)
}

func (t *Transport) UnmarshalJSON(data []byte) error {
	type plain Transport
	var p plain
	extra, err := decodeWithExtra(data, &p, transportKeys)
	if err != nil {
		return err
	}
	*t = Transport(p)
	t.Extra = extra
	return nil
}

func (t Transport) MarshalJSON() ([]byte, error) {
	type plain Transport
	return WithMembers(plain(t), t.Extra)
}

// WithMembers encodes v as a JSON object and sets members on it, replacing
// any member of the same name.
func WithMembers(v any, members Extra) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(members) == 0 {
		return data, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, raw := range members {
		fields[k] = raw
	}
	return json.Marshal(fields)
}

func decodeWithExtra(data []byte, v any, known map[string]bool) (Extra, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	var extra Extra
	for k, raw := range fields {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = Extra{}
		}
		extra[k] = raw
	}
	return extra, nil
}

func jsonKeys(t reflect.Type) map[string]bool {
	keys := map[string]bool{}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = true
	}
	return keys
}
