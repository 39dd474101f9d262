package query

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/UsamaMalikDev/Task-App/internal/model"
)

// EncodeCursor returns the opaque token for the given keyset position.
func EncodeCursor(p model.Position) string {
	raw := p.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + p.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(token string) (model.Position, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return model.Position{}, fmt.Errorf("%w: malformed cursor", ErrValidation)
	}

	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return model.Position{}, fmt.Errorf("%w: malformed cursor", ErrValidation)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return model.Position{}, fmt.Errorf("%w: malformed cursor timestamp", ErrValidation)
	}
	return model.Position{CreatedAt: createdAt, ID: id}, nil
}
