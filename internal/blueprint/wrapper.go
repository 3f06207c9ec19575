package blueprint

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// FieldName is the only key of the wrapper object.
const FieldName = "blueprint"

// ErrInvalidWrapper indicates a request body that is not a blueprint wrapper.
var ErrInvalidWrapper = errors.New("invalid blueprint wrapper")

// Wrapper is the request body sent to the blueprint API.
type Wrapper struct {
	Blueprint string `json:"blueprint"`
}

// Wrap base64-encodes canonical JSON into a Wrapper.
func Wrap(canonical []byte) *Wrapper {
	return &Wrapper{Blueprint: base64.StdEncoding.EncodeToString(canonical)}
}

// Marshal returns the wrapper as a JSON object.
func (w *Wrapper) Marshal() ([]byte, error) {
	body, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal wrapper: %w", err)
	}
	return body, nil
}

// Decode returns the canonical JSON held by the wrapper.
func (w *Wrapper) Decode() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(w.Blueprint)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %w", ErrInvalidWrapper, err)
	}
	return data, nil
}

// Unwrap extracts canonical JSON from either a wrapper object or bare base64
// text, the two forms an operator is likely to have on hand.
func Unwrap(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidWrapper)
	}

	w := &Wrapper{Blueprint: string(data)}
	if data[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		w = &Wrapper{}
		if err := dec.Decode(w); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWrapper, err)
		}
		if w.Blueprint == "" {
			return nil, fmt.Errorf("%w: missing %q field", ErrInvalidWrapper, FieldName)
		}
	}

	decoded, err := w.Decode()
	if err != nil {
		return nil, err
	}
	if !json.Valid(decoded) {
		return nil, fmt.Errorf("%w: decoded content is not JSON", ErrInvalidWrapper)
	}
	return decoded, nil
}

// Payload holds all three representations of one blueprint.
type Payload struct {
	Document *Document
	JSON     []byte
	Wrapper  *Wrapper
}

// NewPayload parses YAML and derives the canonical JSON and wrapper from it.
func NewPayload(data []byte, f Format) (*Payload, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Payload(f)
}

// Payload derives the canonical JSON and wrapper for an already parsed
// document.
func (d *Document) Payload(f Format) (*Payload, error) {
	canonical, err := d.JSON(f)
	if err != nil {
		return nil, err
	}
	return &Payload{
		Document: d,
		JSON:     canonical,
		Wrapper:  Wrap(canonical),
	}, nil
}
