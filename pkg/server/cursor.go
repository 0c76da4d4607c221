package server

import (
	"encoding/base64"
	"fmt"
	"strings"

	mcperrors "github.com/mcpwire/mcpwire/pkg/errors"
	"github.com/mcpwire/mcpwire/pkg/protocol"
)

// Cursors issued by the registries are base64 of "<kind>:<continuation key>".
// The kind prefix ties a cursor to the listing that issued it, so a cursor
// replayed against a different listing decodes but fails validation. Peers
// must treat the whole value as opaque; only this codec looks inside.

func encodeCursor(kind, lastKey string) protocol.Cursor {
	return protocol.Cursor(base64.RawURLEncoding.EncodeToString([]byte(kind + ":" + lastKey)))
}

func decodeCursor(kind string, cursor protocol.Cursor) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(cursor))
	if err != nil {
		return "", mcperrors.NewInvalidCursor(err)
	}
	prefix, key, ok := strings.Cut(string(raw), ":")
	if !ok || prefix != kind {
		return "", mcperrors.NewInvalidCursor(fmt.Errorf("cursor does not belong to the %s listing", kind))
	}
	return key, nil
}
