package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyFrame is returned for frames without any content.
var ErrEmptyFrame = errors.New("empty frame")

// Envelope is one undecoded message of a frame, tagged with its discriminator.
type Envelope struct {
	Kind string
	Raw  json.RawMessage
}

// Decode unmarshals the envelope body into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// DecodeFrame splits a frame into envelopes. A frame is either a single JSON
// object or an array of objects. Elements that are not objects get an empty Kind.
func DecodeFrame(data []byte) ([]Envelope, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	var raws []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
	} else {
		if !json.Valid(data) {
			return nil, fmt.Errorf("decode frame: invalid json")
		}
		raws = []json.RawMessage{json.RawMessage(data)}
	}

	out := make([]Envelope, 0, len(raws))
	for _, raw := range raws {
		var h Header
		if err := json.Unmarshal(raw, &h); err != nil {
			out = append(out, Envelope{Raw: raw})
			continue
		}
		out = append(out, Envelope{Kind: h.Kind(), Raw: raw})
	}
	return out, nil
}

// EncodeFrame marshals one or more envelopes. A single envelope is written as an
// object, several as an array.
func EncodeFrame(envs ...any) ([]byte, error) {
	switch len(envs) {
	case 0:
		return nil, ErrEmptyFrame
	case 1:
		return json.Marshal(envs[0])
	default:
		return json.Marshal(envs)
	}
}
