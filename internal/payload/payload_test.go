package payload

import (
	"testing"
)

func TestToneCurveCheck(t *testing.T) {
	tests := []struct {
		name    string
		curve   ToneCurve
		wantErr bool
	}{
		{
			name:  "linear curve",
			curve: ToneCurve{Points: []CurvePoint{{X: 0, Y: 0}, {X: 1, Y: 1}}},
		},
		{
			name:    "single point",
			curve:   ToneCurve{Points: []CurvePoint{{X: 0.5, Y: 0.5}}},
			wantErr: true,
		},
		{
			name:    "no points",
			curve:   ToneCurve{},
			wantErr: true,
		},
		{
			name:    "point outside unit square",
			curve:   ToneCurve{Points: []CurvePoint{{X: 0, Y: 0}, {X: 1.5, Y: 1}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(&tt.curve)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCropCheck(t *testing.T) {
	tests := []struct {
		name    string
		crop    Crop
		wantErr bool
	}{
		{
			name: "full frame",
			crop: Crop{Left: 0, Top: 0, Width: 1, Height: 1},
		},
		{
			name: "straightened center crop",
			crop: Crop{Left: 0.1, Top: 0.1, Width: 0.8, Height: 0.8, Angle: -12},
		},
		{
			name:    "zero width",
			crop:    Crop{Left: 0, Top: 0, Width: 0, Height: 1},
			wantErr: true,
		},
		{
			name:    "angle beyond straighten range",
			crop:    Crop{Left: 0, Top: 0, Width: 1, Height: 1, Angle: 60},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(&tt.crop)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaskCheck(t *testing.T) {
	good := MaskStack{Masks: []Mask{
		{Kind: "linear", Params: map[string]float64{"x0": 0, "y0": 0, "x1": 1, "y1": 1}, Exposure: -0.5},
		{Kind: "radial", Inverted: true, Params: map[string]float64{"cx": 0.5, "cy": 0.5, "r": 0.3}},
	}}
	if err := Check(&good); err != nil {
		t.Errorf("Check(valid stack) error = %v", err)
	}

	bad := MaskStack{Masks: []Mask{
		{Kind: "vignette", Params: map[string]float64{}},
	}}
	if err := Check(&bad); err == nil {
		t.Error("Check accepted an unknown mask kind")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	curve := ToneCurve{Points: []CurvePoint{{X: 0, Y: 0.1}, {X: 1, Y: 0.9}}}
	data, err := Encode(&curve)
	if err != nil {
		t.Fatalf("Encode error = %v", err)
	}
	if !ValidJSON(data) {
		t.Error("Encode produced invalid JSON")
	}

	var decoded ToneCurve
	if err := Decode(data, &decoded); err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if len(decoded.Points) != 2 || decoded.Points[0].Y != 0.1 {
		t.Errorf("Round trip = %+v", decoded)
	}

	// Encode refuses payloads that fail the schema.
	if _, err := Encode(&ToneCurve{}); err == nil {
		t.Error("Encode accepted an empty curve")
	}
}

func TestValidJSON(t *testing.T) {
	if !ValidJSON([]byte(`{"a":[1,2,3]}`)) {
		t.Error("ValidJSON rejected valid JSON")
	}
	if ValidJSON([]byte(`{"a":`)) {
		t.Error("ValidJSON accepted truncated JSON")
	}
}
