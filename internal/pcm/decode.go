// Package pcm converts the raw speech payloads returned by the remote model into
// playable audio assets and back into interleaved PCM for output.
package pcm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/satriahrh/linguavoice/server/domain"
)

// Decode turns standard, padded base64 text into bytes.
// Line breaks are rejected like any other character outside the alphabet.
func Decode(base64Text string) ([]byte, error) {
	if i := strings.IndexAny(base64Text, "\r\n"); i >= 0 {
		return nil, &domain.DecodeError{
			Offset: int64(i),
			Err:    fmt.Errorf("line break in payload"),
		}
	}

	data, err := base64.StdEncoding.DecodeString(base64Text)
	if err != nil {
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) {
			return nil, &domain.DecodeError{Offset: int64(corrupt), Err: err}
		}
		return nil, &domain.DecodeError{Err: err}
	}

	if data == nil {
		data = []byte{}
	}
	return data, nil
}
