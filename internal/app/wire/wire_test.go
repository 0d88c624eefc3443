package wire

import (
	"math"
	"testing"

	"blobparty/internal/pkg/errs"
)

const tolerance = 1e-9

func colorsClose(a, b RGB) bool {
	return math.Abs(a.R-b.R) < tolerance &&
		math.Abs(a.G-b.G) < tolerance &&
		math.Abs(a.B-b.B) < tolerance
}

func TestParseRGB(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RGB
		wantErr bool
	}{
		{name: "plain", input: "1,0.5,0", want: RGB{R: 1, G: 0.5, B: 0}},
		{name: "trailing alpha ignored", input: "1,0.5,0,1", want: RGB{R: 1, G: 0.5, B: 0}},
		{name: "surrounding quotes", input: `"1,0.5,0"`, want: RGB{R: 1, G: 0.5, B: 0}},
		{name: "quotes and alpha", input: `"0.25,0.5,0.75,0.4"`, want: RGB{R: 0.25, G: 0.5, B: 0.75}},
		{name: "spaces", input: " 0.1, 0.2, 0.3 ", want: RGB{R: 0.1, G: 0.2, B: 0.3}},
		{name: "too few components", input: "1,2", wantErr: true},
		{name: "too many components", input: "1,2,3,4,5", wantErr: true},
		{name: "not numbers", input: "a,b,c", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRGB(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseRGB(%q) succeeded, want error", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRGB(%q) failed: %v", tc.input, err)
			}
			if !colorsClose(got, tc.want) {
				t.Fatalf("ParseRGB(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

func TestDecodeSpawnWithAlphaComponent(t *testing.T) {
	payload, customErr := Decode(OpDoSpawn, []byte(`{"id":"u1","col":"1,0.5,0,1","nm":"blobby"}`))
	if customErr != nil {
		t.Fatalf("Decode failed: %v", customErr)
	}

	spawn, ok := payload.(*SpawnEvent)
	if !ok {
		t.Fatalf("Decode returned %T, want *SpawnEvent", payload)
	}

	if spawn.ID != "u1" || spawn.Name != "blobby" {
		t.Fatalf("unexpected spawn fields: %+v", spawn)
	}
	if !colorsClose(spawn.Col, RGB{R: 1, G: 0.5, B: 0}) {
		t.Fatalf("spawn color = %+v, want (1, 0.5, 0)", spawn.Col)
	}
}

func TestColorUpdateRoundTrip(t *testing.T) {
	original := ColorUpdate{ID: "u1", Color: RGB{R: 0.2, G: 0.4, B: 0.6}}

	data, customErr := Encode(OpUpdateColor, original)
	if customErr != nil {
		t.Fatalf("Encode failed: %v", customErr)
	}

	payload, customErr := Decode(OpUpdateColor, data)
	if customErr != nil {
		t.Fatalf("Decode failed: %v", customErr)
	}

	decoded := payload.(*ColorUpdate)
	if decoded.ID != original.ID {
		t.Fatalf("id = %q, want %q", decoded.ID, original.ID)
	}
	if !colorsClose(decoded.Color, original.Color) {
		t.Fatalf("color = %+v, want %+v", decoded.Color, original.Color)
	}
}

func TestDecodeColorUpdateAcceptsBothKeys(t *testing.T) {
	for _, key := range []string{"color", "col"} {
		t.Run(key, func(t *testing.T) {
			payload, customErr := Decode(OpUpdateColor, []byte(`{"id":"u1","`+key+`":"0.1,0.2,0.3"}`))
			if customErr != nil {
				t.Fatalf("Decode with key %q failed: %v", key, customErr)
			}

			update := payload.(*ColorUpdate)
			if !colorsClose(update.Color, RGB{R: 0.1, G: 0.2, B: 0.3}) {
				t.Fatalf("color = %+v, want (0.1, 0.2, 0.3)", update.Color)
			}
		})
	}
}

func TestDecodeColorUpdateMissingColor(t *testing.T) {
	_, customErr := Decode(OpUpdateColor, []byte(`{"id":"u1"}`))
	if customErr == nil || customErr.Code != errs.ErrMalformedPayload {
		t.Fatalf("Decode without color = %v, want ErrMalformedPayload", customErr)
	}
}

func TestDecodeMissingID(t *testing.T) {
	_, customErr := Decode(OpUpdatePosition, []byte(`{"pos":{"x":1,"y":2}}`))
	if customErr == nil || customErr.Code != errs.ErrMalformedPayload {
		t.Fatalf("Decode without id = %v, want ErrMalformedPayload", customErr)
	}
}

func TestDecodeStateUpdate(t *testing.T) {
	raw := []byte(`{"pos":{"u1":{"x":1,"y":2},"u2":{"x":3,"y":4}},"inp":{"u1":{"dir":-1,"jmp":true}}}`)

	payload, customErr := Decode(OpUpdateState, raw)
	if customErr != nil {
		t.Fatalf("Decode failed: %v", customErr)
	}

	state := payload.(*StateUpdate)
	if len(state.Positions) != 2 {
		t.Fatalf("positions = %d entries, want 2", len(state.Positions))
	}
	if state.Positions["u2"] != (Vec2{X: 3, Y: 4}) {
		t.Fatalf("u2 position = %+v", state.Positions["u2"])
	}
	if got := state.Inputs["u1"]; got.Dir != -1 || !got.Jump {
		t.Fatalf("u1 input = %+v", got)
	}
}

func TestDecodeInitialStateParsesColors(t *testing.T) {
	raw := []byte(`{"pos":{"u1":{"x":0,"y":0}},"inp":{},"col":{"u1":"0.5,0.25,1"},"nms":{"u1":"blobby"}}`)

	payload, customErr := Decode(OpInitialState, raw)
	if customErr != nil {
		t.Fatalf("Decode failed: %v", customErr)
	}

	initial := payload.(*InitialState)
	if !colorsClose(initial.Colors["u1"], RGB{R: 0.5, G: 0.25, B: 1}) {
		t.Fatalf("u1 color = %+v", initial.Colors["u1"])
	}
	if initial.Names["u1"] != "blobby" {
		t.Fatalf("u1 name = %q", initial.Names["u1"])
	}
}

func TestDecodeInitialStateBadColor(t *testing.T) {
	raw := []byte(`{"pos":{},"inp":{},"col":{"u1":"red"},"nms":{}}`)

	_, customErr := Decode(OpInitialState, raw)
	if customErr == nil || customErr.Code != errs.ErrMalformedPayload {
		t.Fatalf("Decode with bad color = %v, want ErrMalformedPayload", customErr)
	}
}

func TestEncodeRejectsMismatchedPayload(t *testing.T) {
	_, customErr := Encode(OpUpdatePosition, JumpUpdate{ID: "u1"})
	if customErr == nil || customErr.Code != errs.ErrMalformedPayload {
		t.Fatalf("Encode with wrong payload type = %v, want ErrMalformedPayload", customErr)
	}
}

func TestDecodeUnknownOp(t *testing.T) {
	_, customErr := Decode(OpCode(99), []byte(`{}`))
	if customErr == nil || customErr.Code != errs.ErrMalformedPayload {
		t.Fatalf("Decode with unknown op = %v, want ErrMalformedPayload", customErr)
	}
}
