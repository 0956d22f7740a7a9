package domain

import "encoding/json"

// Legacy snake-case megabyte field names accepted on read. Writes always
// emit the capitalized form via the struct tags in types.go.
// Go's encoding/json matches object keys case-insensitively and keeps
// the last match, so "totalInputSizeMB" and "totalInputSizeMb" land in
// the same field. The megabyte fields are therefore re-read by exact key:
// the capitalized value is used when present and non-zero, otherwise the
// legacy value.

// preferCurrent sets *dst from raw[current] when that key holds a
// non-zero number, and otherwise from raw[legacy] when that key exists.
func preferCurrent(raw map[string]json.RawMessage, current, legacy string, dst *float64) {
	var v float64
	if msg, ok := raw[current]; ok && json.Unmarshal(msg, &v) == nil && v != 0 {
		*dst = v
		return
	}
	if msg, ok := raw[legacy]; ok && json.Unmarshal(msg, &v) == nil {
		*dst = v
	}
}

// UnmarshalJSON accepts either the capitalized field names or the legacy
// lowercase "Mb" spelling.
func (s *PresetStats) UnmarshalJSON(data []byte) error {
	type alias PresetStats
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = PresetStats(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	preferCurrent(raw, "totalInputSizeMB", "totalInputSizeMb", &s.TotalInputSizeMB)
	preferCurrent(raw, "totalOutputSizeMB", "totalOutputSizeMb", &s.TotalOutputSizeMB)
	return nil
}

// UnmarshalJSON accepts either the capitalized field names or the legacy
// lowercase "Mb" spelling for a Job's size fields.
func (j *Job) UnmarshalJSON(data []byte) error {
	type alias Job
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*j = Job(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	preferCurrent(raw, "originalSizeMB", "originalSizeMb", &j.OriginalSizeMB)
	preferCurrent(raw, "outputSizeMB", "outputSizeMb", &j.OutputSizeMB)
	return nil
}

type legacyMediaInfoSizes struct {
	SizeMbLegacy *float64 `json:"sizeMb"`
}

// UnmarshalJSON accepts either sizeBytes or a legacy sizeMb field,
// converting megabytes to bytes.
func (m *MediaInfo) UnmarshalJSON(data []byte) error {
	type alias MediaInfo
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = MediaInfo(a)

	if m.SizeBytes == 0 {
		var legacy legacyMediaInfoSizes
		if err := json.Unmarshal(data, &legacy); err != nil {
			return err
		}
		if legacy.SizeMbLegacy != nil {
			m.SizeBytes = int64(*legacy.SizeMbLegacy * 1024 * 1024)
		}
	}
	return nil
}
