/*
Package wire encodes and decodes the operation-coded message payloads exchanged
over the realtime socket.

This file defines the operation codes, the typed payload struct for each code,
and the pure Encode/Decode entry points. The codec performs no I/O; the field
names on the structs are part of the protocol and must not change.
*/
package wire

import (
	"encoding/json"
	"fmt"

	"blobparty/internal/pkg/errs"
)

// OpCode identifies the shape and purpose of a message exchanged over the
// realtime socket. Application op codes are positive integers starting at 1,
// distinct from the transport's own zero/negative error codes.
type OpCode int64

const (
	// OpUpdatePosition streams the local character's position (outbound).
	OpUpdatePosition OpCode = iota + 1

	// OpUpdateInput streams the local character's movement input (outbound).
	OpUpdateInput

	// OpUpdateState carries the server's authoritative position/input snapshot (inbound).
	OpUpdateState

	// OpUpdateJump announces that the local character jumped (outbound).
	OpUpdateJump

	// OpDoSpawn requests or announces a character spawn (both directions).
	OpDoSpawn

	// OpUpdateColor announces a character color change (both directions).
	OpUpdateColor

	// OpInitialState carries the full world snapshot sent to a joining client (inbound).
	OpInitialState
)

// String returns the protocol name of the op code.
func (op OpCode) String() string {
	switch op {
	case OpUpdatePosition:
		return "UPDATE_POSITION"
	case OpUpdateInput:
		return "UPDATE_INPUT"
	case OpUpdateState:
		return "UPDATE_STATE"
	case OpUpdateJump:
		return "UPDATE_JUMP"
	case OpDoSpawn:
		return "DO_SPAWN"
	case OpUpdateColor:
		return "UPDATE_COLOR"
	case OpInitialState:
		return "INITIAL_STATE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int64(op))
	}
}

// Vec2 is a 2D position.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PositionUpdate is the payload for OpUpdatePosition.
type PositionUpdate struct {
	ID  string `json:"id"`
	Pos Vec2   `json:"pos"`
}

// InputUpdate is the payload for OpUpdateInput. Inp is the horizontal
// movement direction in [-1, 1].
type InputUpdate struct {
	ID  string  `json:"id"`
	Inp float64 `json:"inp"`
}

// JumpUpdate is the payload for OpUpdateJump.
type JumpUpdate struct {
	ID string `json:"id"`
}

// ColorUpdate is the payload for OpUpdateColor. It is encoded with the field
// name "color"; decoding also accepts the legacy short key "col", which older
// clients emit.
type ColorUpdate struct {
	ID    string `json:"id"`
	Color RGB    `json:"color"`
}

// UnmarshalJSON accepts the color under either the "color" or "col" key.
func (u *ColorUpdate) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID    string `json:"id"`
		Color *RGB   `json:"color"`
		Col   *RGB   `json:"col"`
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	u.ID = aux.ID
	switch {
	case aux.Color != nil:
		u.Color = *aux.Color
	case aux.Col != nil:
		u.Color = *aux.Col
	default:
		return fmt.Errorf("color update for %q carries no color field", aux.ID)
	}

	return nil
}

// SpawnEvent is the payload for OpDoSpawn.
type SpawnEvent struct {
	ID   string `json:"id"`
	Col  RGB    `json:"col"`
	Name string `json:"nm"`
}

// InputState is one participant's input entry inside a state snapshot.
type InputState struct {
	Dir  float64 `json:"dir"`
	Jump bool    `json:"jmp"`
}

// StateUpdate is the payload for OpUpdateState: the server's periodic
// authoritative snapshot of everyone's position and input.
type StateUpdate struct {
	Positions map[string]Vec2       `json:"pos"`
	Inputs    map[string]InputState `json:"inp"`
}

// InitialState is the payload for OpInitialState: the full world snapshot
// delivered once when joining, including everyone's color and display name.
type InitialState struct {
	Positions map[string]Vec2       `json:"pos"`
	Inputs    map[string]InputState `json:"inp"`
	Colors    map[string]RGB        `json:"col"`
	Names     map[string]string     `json:"nms"`
}

// Encode serializes the payload struct for the given op code into its wire
// bytes. The payload must be the struct type matching the op code.
func Encode(op OpCode, payload any) ([]byte, *errs.CustomError) {
	if err := checkPayloadType(op, payload); err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.NewError(errs.ErrMalformedPayload, err.Error())
	}

	return data, nil
}

// Decode parses wire bytes into the payload struct for the given op code.
// The returned value is a pointer to the matching struct type; callers type
// switch on it. Missing required fields or unparsable colors fail with
// ErrMalformedPayload.
func Decode(op OpCode, data []byte) (any, *errs.CustomError) {
	var (
		payload any
		err     error
	)

	switch op {
	case OpUpdatePosition:
		v := &PositionUpdate{}
		err = json.Unmarshal(data, v)
		payload = v
	case OpUpdateInput:
		v := &InputUpdate{}
		err = json.Unmarshal(data, v)
		payload = v
	case OpUpdateState:
		v := &StateUpdate{}
		err = json.Unmarshal(data, v)
		payload = v
	case OpUpdateJump:
		v := &JumpUpdate{}
		err = json.Unmarshal(data, v)
		payload = v
	case OpDoSpawn:
		v := &SpawnEvent{}
		err = json.Unmarshal(data, v)
		payload = v
	case OpUpdateColor:
		v := &ColorUpdate{}
		err = json.Unmarshal(data, v)
		payload = v
	case OpInitialState:
		v := &InitialState{}
		err = json.Unmarshal(data, v)
		payload = v
	default:
		return nil, errs.NewError(errs.ErrMalformedPayload, fmt.Sprintf("unknown op code %d", int64(op)))
	}

	if err != nil {
		return nil, errs.NewError(errs.ErrMalformedPayload, err.Error())
	}

	if err := checkRequiredFields(op, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// checkPayloadType verifies that the payload struct matches the op code on encode.
func checkPayloadType(op OpCode, payload any) *errs.CustomError {
	var ok bool

	switch op {
	case OpUpdatePosition:
		_, ok = payload.(PositionUpdate)
	case OpUpdateInput:
		_, ok = payload.(InputUpdate)
	case OpUpdateState:
		_, ok = payload.(StateUpdate)
	case OpUpdateJump:
		_, ok = payload.(JumpUpdate)
	case OpDoSpawn:
		_, ok = payload.(SpawnEvent)
	case OpUpdateColor:
		_, ok = payload.(ColorUpdate)
	case OpInitialState:
		_, ok = payload.(InitialState)
	}

	if !ok {
		return errs.NewError(errs.ErrMalformedPayload,
			fmt.Sprintf("payload type %T does not match op %s", payload, op))
	}

	return nil
}

// checkRequiredFields rejects decoded per-user payloads missing the sender id.
func checkRequiredFields(op OpCode, payload any) *errs.CustomError {
	var id string

	switch v := payload.(type) {
	case *PositionUpdate:
		id = v.ID
	case *InputUpdate:
		id = v.ID
	case *JumpUpdate:
		id = v.ID
	case *SpawnEvent:
		id = v.ID
	case *ColorUpdate:
		id = v.ID
	default:
		// Snapshot payloads have no single sender.
		return nil
	}

	if id == "" {
		return errs.NewError(errs.ErrMalformedPayload,
			fmt.Sprintf("%s payload is missing required field id", op))
	}

	return nil
}
