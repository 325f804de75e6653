package formdata

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lambertxiao/go-formstream/pkg/types"
)

const maxBoundaryLen = 70

// ChooseBoundary returns a random 32 character hex token.
func ChooseBoundary() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// ValidateBoundary checks b against the bchars grammar of RFC 2046: 1 to 70
// characters, no trailing space.
func ValidateBoundary(b string) error {
	if len(b) < 1 || len(b) > maxBoundaryLen {
		return errors.Wrapf(types.ErrInvalidBoundary, "length %d", len(b))
	}
	end := len(b) - 1
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			continue
		}
		switch c {
		case '\'', '(', ')', '+', '_', ',', '-', '.', '/', ':', '=', '?':
			continue
		case ' ':
			if i != end {
				continue
			}
		}
		return errors.Wrapf(types.ErrInvalidBoundary, "bad character %q at %d", c, i)
	}
	return nil
}
