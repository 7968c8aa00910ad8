// Package render converts decoded messages into their canonical JSON form.
//
// The canonical form is a compact object with the keys in schema order:
//
//	{"timestamp":<uint32>,"data":"<string>"}
//
// Output is an observability contract: downstream parity tests match the
// rendered string byte for byte, so the form must stay compact (no
// whitespace) and must not HTML-escape.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/justapithecus/adit/types"
)

// Render produces the canonical JSON form of a message.
//
// Any data string is accepted as-is; characters that JSON requires to be
// escaped (quotes, backslashes, control characters) are escaped per JSON
// string rules. HTML-significant characters pass through unescaped. A
// render failure is local to the one message: the caller logs, drops the
// output, and continues.
func Render(msg *types.Message) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(msg); err != nil {
		return "", fmt.Errorf("render message: %w", err)
	}

	// Encode appends a newline; the canonical form has none.
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
