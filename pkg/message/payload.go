// Package message holds helpers shared by the client->server and
// server->client codecs.
package message

import (
	"bytes"
	"encoding/json"
	goerrs "errors"
	"math"
	"strconv"

	"github.com/sessamekesh/duckpond-client/pkg/errors"
)

// DecodePayload unmarshals an envelope's data object into out. Every name in
// required must be present as a key, otherwise a *errors.MissingFieldError is
// returned. Type mismatches are reported as *errors.PayloadTypeError.
func DecodePayload(messageName string, data json.RawMessage, out any, required ...string) error {
	fields := map[string]json.RawMessage{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return &errors.PayloadTypeError{
				MessageName: messageName,
				FieldName:   "data",
				Reason:      err,
			}
		}
	}

	for _, name := range required {
		if _, has := fields[name]; !has {
			return &errors.MissingFieldError{
				MessageName: messageName,
				FieldName:   name,
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if goerrs.As(err, &typeErr) {
			return &errors.PayloadTypeError{
				MessageName: messageName,
				FieldName:   typeErr.Field,
				Reason:      err,
			}
		}
		return &errors.PayloadTypeError{
			MessageName: messageName,
			FieldName:   "data",
			Reason:      err,
		}
	}

	return nil
}

// Marshal encodes v without HTML escaping, so names such as "A&B" go out the
// way the player typed them.
func Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Float32 serializes like the game server's reference encoder: whole numbers
// keep a trailing ".0" so 1 is written as 1.0.
type Float32 float32

var errNonFinite = goerrs.New("non-finite float cannot be encoded")

func (f Float32) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errNonFinite
	}

	s := strconv.FormatFloat(v, 'f', -1, 32)
	if !bytes.ContainsAny([]byte(s), ".e") {
		s += ".0"
	}
	return []byte(s), nil
}

func (f *Float32) UnmarshalJSON(b []byte) error {
	var v float32
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float32(v)
	return nil
}
