package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Columns are the table headers, in display order.
var Columns = []string{"timestamp", "type", "longitude", "latitude"}

// Record is one positional telemetry sample pushed by the server.
// Coordinates are nil when the server omitted them or sent something that
// is not a number. A coordinate sent as a string is still displayed as
// sent.
type Record struct {
	Timestamp string   `json:"vts"`
	Type      string   `json:"vtype"`
	Longitude *float64 `json:"vlon,omitempty"`
	Latitude  *float64 `json:"vlat,omitempty"`

	lonText string
	latText string
}

// New returns a fully populated Record.
func New(timestamp, typ string, lon, lat float64) Record {
	return Record{
		Timestamp: timestamp,
		Type:      typ,
		Longitude: &lon,
		Latitude:  &lat,
	}
}

// UnmarshalJSON never fails on a well-formed JSON value: fields with an
// unexpected shape are left empty and anything that is not an object
// decodes to the zero Record.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		if json.Valid(data) {
			return nil
		}
		return err
	}
	r.Timestamp = scalarText(fields["vts"])
	r.Type = scalarText(fields["vtype"])
	r.Longitude, r.lonText = coord(fields["vlon"])
	r.Latitude, r.latText = coord(fields["vlat"])
	return nil
}

// Row returns the record's display cells in Columns order.
func (r Record) Row() []string {
	return []string{r.Timestamp, r.Type, coordCell(r.Longitude, r.lonText), coordCell(r.Latitude, r.latText)}
}

func (r Record) String() string {
	row := r.Row()
	return fmt.Sprintf("%s | %s | %s | %s", row[0], row[1], row[2], row[3])
}

// FormatCoord renders a coordinate; whole numbers keep one decimal so 1
// prints as "1.0".
func FormatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	if *v == math.Trunc(*v) && !math.IsInf(*v, 0) {
		return strconv.FormatFloat(*v, 'f', 1, 64)
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// DecodeList decodes a records payload. The payload must be a JSON array;
// its elements are decoded leniently.
func DecodeList(payload json.RawMessage) ([]Record, error) {
	if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("decode records: payload is not an array: %.40s", trimmed)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	records := make([]Record, len(raw))
	for i, item := range raw {
		if err := records[i].UnmarshalJSON(item); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
	}
	return records, nil
}

// scalarText returns strings unquoted and numbers and booleans verbatim.
func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// coord decodes a coordinate. Strings keep their text for display and
// also yield a value when they parse as a number.
func coord(raw json.RawMessage) (*float64, string) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ""
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, ""
	}
	text := scalarText(raw)
	if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
		return &v, text
	}
	return nil, text
}

func coordCell(v *float64, text string) string {
	if text != "" {
		return text
	}
	return FormatCoord(v)
}
