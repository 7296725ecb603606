// Package features turns human-facing video attributes into the numeric
// feature vectors consumed by the view-count model.
//
// The same Encoder is used when fitting on historical records and when
// scoring candidates, so both paths always produce identical vectors for
// identical inputs.
//
// Encoded layout (see Vector):
//
//	duration   seconds, passed through unchanged
//	type       short → 0, long → 1
//	platform   TikTok → 0, YouTube → 1
//	weekday    Monday → 0 … Sunday → 6
package features

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnknownCategory is returned when a categorical value is outside its
	// declared domain (always for weekdays, for type and platform only in
	// strict mode).
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInvalidDuration is returned for non-positive or non-finite durations.
	ErrInvalidDuration = errors.New("invalid duration")
)

// Feature codes.
const (
	TypeShort = 0
	TypeLong  = 1

	PlatformTikTok  = 0
	PlatformYouTube = 1
)

// NumFeatures is the length of an encoded Vector.
const NumFeatures = 4

// Video is a candidate video: the inputs of a single prediction.
type Video struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Type            string  `json:"type"`
	Platform        string  `json:"platform"`
	Day             string  `json:"day"`
}

// Vector is the encoded form of a Video.
type Vector struct {
	Duration float64
	Type     int
	Platform int
	Weekday  int
}

// Values returns the vector in model column order.
func (v Vector) Values() []float64 {
	return []float64{v.Duration, float64(v.Type), float64(v.Platform), float64(v.Weekday)}
}

// Columns names the model columns in the order returned by Vector.Values.
var Columns = [NumFeatures]string{"duration_seconds", "type", "platform", "day"}

// Weekdays lists the canonical day names in code order.
var Weekdays = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// dayCodes also accepts Spanish names, with or without accents.
var dayCodes = map[string]int{
	"monday":    0,
	"tuesday":   1,
	"wednesday": 2,
	"thursday":  3,
	"friday":    4,
	"saturday":  5,
	"sunday":    6,

	"lunes":     0,
	"martes":    1,
	"miercoles": 2,
	"miércoles": 2,
	"jueves":    3,
	"viernes":   4,
	"sabado":    5,
	"sábado":    5,
	"domingo":   6,
}

var typeCodes = map[string]int{
	"short": TypeShort,
	"corto": TypeShort,
	"long":  TypeLong,
	"largo": TypeLong,
}

var platformCodes = map[string]int{
	"tiktok":  PlatformTikTok,
	"youtube": PlatformYouTube,
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EncodeDay maps a weekday name to 0 (Monday) … 6 (Sunday).
// Matching is case-insensitive. Unknown names fail with ErrUnknownCategory.
func EncodeDay(name string) (int, error) {
	code, ok := dayCodes[normalize(name)]
	if !ok {
		return 0, fmt.Errorf("%w: day %q", ErrUnknownCategory, name)
	}
	return code, nil
}

// EncodeType maps "short" to 0 and anything else to 1.
func EncodeType(name string) int {
	if code, ok := typeCodes[normalize(name)]; ok {
		return code
	}
	return TypeLong
}

// EncodePlatform maps "tiktok" to 0 and anything else to 1.
func EncodePlatform(name string) int {
	if code, ok := platformCodes[normalize(name)]; ok {
		return code
	}
	return PlatformYouTube
}

// Encoder converts Videos to Vectors.
//
// In the default permissive mode unrecognized types fall into "long" and
// unrecognized platforms into "YouTube". With Strict set those inputs fail
// with ErrUnknownCategory instead.
type Encoder struct {
	Strict bool
}

// NewEncoder returns an Encoder.
func NewEncoder(strict bool) *Encoder {
	return &Encoder{Strict: strict}
}

// Encode converts a single video.
func (e *Encoder) Encode(v Video) (Vector, error) {
	if math.IsNaN(v.DurationSeconds) || math.IsInf(v.DurationSeconds, 0) || v.DurationSeconds <= 0 {
		return Vector{}, fmt.Errorf("%w: %v", ErrInvalidDuration, v.DurationSeconds)
	}

	day, err := EncodeDay(v.Day)
	if err != nil {
		return Vector{}, err
	}

	var typ, platform int
	if e != nil && e.Strict {
		var ok bool
		if typ, ok = typeCodes[normalize(v.Type)]; !ok {
			return Vector{}, fmt.Errorf("%w: type %q", ErrUnknownCategory, v.Type)
		}
		if platform, ok = platformCodes[normalize(v.Platform)]; !ok {
			return Vector{}, fmt.Errorf("%w: platform %q", ErrUnknownCategory, v.Platform)
		}
	} else {
		typ = EncodeType(v.Type)
		platform = EncodePlatform(v.Platform)
	}

	return Vector{
		Duration: v.DurationSeconds,
		Type:     typ,
		Platform: platform,
		Weekday:  day,
	}, nil
}

// EncodeAll encodes videos in order, stopping at the first failure.
// The returned error names the offending index.
func (e *Encoder) EncodeAll(videos []Video) ([]Vector, error) {
	out := make([]Vector, len(videos))
	for i, v := range videos {
		vec, err := e.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// IsInvalidInput reports whether err was caused by a bad video attribute.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrUnknownCategory) || errors.Is(err, ErrInvalidDuration)
}
