package session

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// ErrInvalidCharset is returned when a Write packet names a charset this
// server has no decoder for.
var ErrInvalidCharset = errors.New("session: unknown or unsupported charset")

// decodeText turns raw Write text bytes into a Go string. With no
// charset given, it takes the bytes as UTF-8 and replaces invalid
// sequences rather than failing. With a charset, it looks the name up
// via golang.org/x/text's HTML (WHATWG) encoding index and decodes
// through it.
func decodeText(data []byte, charset string) (string, error) {
	if charset == "" {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCharset, charset)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: decoding %q: %v", ErrInvalidCharset, charset, err)
	}
	return string(out), nil
}
