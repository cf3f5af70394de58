// Package payload defines the closed set of semi-structured edit
// sub-objects stored as JSON columns, each schema-checked before commit.
package payload

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CurvePoint is a single control point on the parametric tone curve,
// normalized to the unit square.
type CurvePoint struct {
	X float64 `json:"x" validate:"gte=0,lte=1"`
	Y float64 `json:"y" validate:"gte=0,lte=1"`
}

// ToneCurve is the parametric luminance curve. Points run left to right.
type ToneCurve struct {
	Points []CurvePoint `json:"points" validate:"required,min=2,max=32,dive"`
}

// Wheel is one color-grading wheel (shadows, midtones or highlights).
type Wheel struct {
	Hue        float64 `json:"hue" validate:"gte=0,lt=360"`
	Saturation float64 `json:"saturation" validate:"gte=0,lte=1"`
	Luminance  float64 `json:"luminance" validate:"gte=-1,lte=1"`
}

// ColorGrading is the three-wheel grading setup with global blending.
type ColorGrading struct {
	Shadows    Wheel   `json:"shadows"`
	Midtones   Wheel   `json:"midtones"`
	Highlights Wheel   `json:"highlights"`
	Blending   float64 `json:"blending" validate:"gte=0,lte=1"`
}

// Crop is a normalized crop rectangle with an optional straighten angle.
type Crop struct {
	Left   float64 `json:"left" validate:"gte=0,lt=1"`
	Top    float64 `json:"top" validate:"gte=0,lt=1"`
	Width  float64 `json:"width" validate:"gt=0,lte=1"`
	Height float64 `json:"height" validate:"gt=0,lte=1"`
	Angle  float64 `json:"angle" validate:"gte=-45,lte=45"`
}

// Mask is one local-adjustment mask. Params are interpreted by kind:
// linear masks carry the gradient endpoints, radial the ellipse, brush the
// stroke reference.
type Mask struct {
	Kind     string             `json:"kind" validate:"required,oneof=linear radial brush"`
	Inverted bool               `json:"inverted"`
	Params   map[string]float64 `json:"params" validate:"required"`
	Exposure float64            `json:"exposure" validate:"gte=-5,lte=5"`
	Contrast float64            `json:"contrast" validate:"gte=-1,lte=1"`
}

// MaskStack is the ordered list of masks applied to an image.
type MaskStack struct {
	Masks []Mask `json:"masks" validate:"dive"`
}

// Check validates a sub-object against its schema.
func Check(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("payload schema check failed: %w", err)
	}
	return nil
}

// Encode validates v and serializes it for storage.
func Encode(v any) ([]byte, error) {
	if err := Check(v); err != nil {
		return nil, err
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// Decode deserializes a stored payload into out.
func Decode(data []byte, out any) error {
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// ValidJSON reports whether raw is syntactically valid JSON.
func ValidJSON(raw []byte) bool {
	return sonic.Valid(raw)
}
