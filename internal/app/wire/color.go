/*
Package wire encodes and decodes the operation-coded message payloads exchanged
over the realtime socket.

This file defines the RGB color type and its wire representation: a compact
comma-separated float string ("r,g,b"). Alpha is never persisted or transmitted.
*/
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RGB is a 3-component floating point color as carried on the wire and in the
// character store. Components are conventionally in [0, 1] but the codec does
// not clamp them.
type RGB struct {
	R float64
	G float64
	B float64
}

// ParseRGB parses a wire color string of the form "r,g,b". Surrounding quotes
// and whitespace are tolerated, and a fourth (alpha) component is accepted and
// discarded. Anything else fails.
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)

	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return RGB{}, fmt.Errorf("color %q must have 3 components, got %d", s, len(parts))
	}

	components := make([]float64, 0, 3)
	for _, part := range parts[:3] {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return RGB{}, fmt.Errorf("color component %q is not a number", part)
		}
		components = append(components, value)
	}

	return RGB{R: components[0], G: components[1], B: components[2]}, nil
}

// String renders the color in its wire form "r,g,b".
func (c RGB) String() string {
	return strings.Join([]string{
		strconv.FormatFloat(c.R, 'g', -1, 64),
		strconv.FormatFloat(c.G, 'g', -1, 64),
		strconv.FormatFloat(c.B, 'g', -1, 64),
	}, ",")
}

// MarshalJSON serializes the color as its wire string.
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON parses the color from its wire string.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Some senders double-encode the color. Fall back to the raw token.
		raw = string(data)
	}

	parsed, err := ParseRGB(raw)
	if err != nil {
		return err
	}

	*c = parsed
	return nil
}
