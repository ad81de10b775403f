package formats

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeJSON decodes data into v. Strict JSON is tried first; on failure the
// document is read as JSON5 (comments, trailing commas, unquoted keys) and
// re-decoded through encoding/json so struct tags and custom unmarshalers
// behave identically on both paths.
func decodeJSON(data []byte, v any) error {
	data = bytes.TrimPrefix(data, utf8BOM)
	strictErr := json.Unmarshal(data, v)
	if strictErr == nil {
		return nil
	}

	var tree any
	if err := json5.Unmarshal(data, &tree); err != nil {
		return scene.Malformed("%v", strictErr)
	}
	normalized, err := json.Marshal(tree)
	if err != nil {
		return scene.Malformed("%v", err)
	}
	if err := json.Unmarshal(normalized, v); err != nil {
		return scene.Malformed("%v", err)
	}
	return nil
}

// number is a float that also accepts numeric strings and booleans, since
// hand-edited model files are not consistent about it. Anything else reads
// as zero.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	*n = number(parseNumber(b))
	return nil
}

func parseNumber(b []byte) float64 {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return 0
	}
	return toFloat(v)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

// vec3 reads [x, y, z]. Short arrays are padded with zeros; anything that
// is not an array leaves the vector unset.
type vec3 struct {
	math3d.Vec3
	Set bool
}

func (v *vec3) UnmarshalJSON(b []byte) error {
	var arr []any
	if err := json.Unmarshal(b, &arr); err != nil || len(arr) == 0 {
		return nil
	}
	var c [3]float64
	for i := 0; i < 3 && i < len(arr); i++ {
		c[i] = toFloat(arr[i])
	}
	v.Vec3 = math3d.FromArray(c)
	v.Set = true
	return nil
}

// floats reads an array of numbers of any length, leniently.
type floats []float64

func (f *floats) UnmarshalJSON(b []byte) error {
	var arr []any
	if err := json.Unmarshal(b, &arr); err != nil {
		*f = nil
		return nil
	}
	out := make(floats, len(arr))
	for i, x := range arr {
		out[i] = toFloat(x)
	}
	*f = out
	return nil
}

// at returns element i, or def when missing.
func (f floats) at(i int, def float64) float64 {
	if i < len(f) {
		return f[i]
	}
	return def
}

// optBool is a tri-state boolean: unset, true or false.
type optBool struct {
	Val bool
	Set bool
}

func (o *optBool) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case bool:
		o.Val, o.Set = x, true
	case float64:
		o.Val, o.Set = x != 0, true
	case string:
		if pb, err := strconv.ParseBool(x); err == nil {
			o.Val, o.Set = pb, true
		}
	}
	return nil
}

// describe renders a JSON scalar for messages.
func describe(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}

func jsonString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
