package callbacks

import (
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// FieldSep separates payload fields. Field values must not contain it;
// identifiers and plan/tier tags never do, while underscores inside a single
// field stay intact.
const FieldSep = "|"

// ErrBadPayload reports a payload that does not match the expected shape.
var ErrBadPayload = errors.New("callbacks: malformed payload")

// EncodeFields joins payload fields for a tagged action button.
func EncodeFields(fields ...string) string {
	return strings.Join(fields, FieldSep)
}

// Fields splits the callback payload into its tagged fields.
// An empty payload yields no fields.
func Fields(c tele.Context) []string {
	p := CallbackPayload(c)
	if p == "" {
		return nil
	}
	return strings.Split(p, FieldSep)
}

// Field returns the i-th payload field or an error when absent.
func Field(c tele.Context, i int) (string, error) {
	fields := Fields(c)
	if i < 0 || i >= len(fields) {
		return "", ErrBadPayload
	}
	return fields[i], nil
}

// Int64Field parses the i-th payload field as int64.
func Int64Field(c tele.Context, i int) (int64, error) {
	raw, err := Field(c, i)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// PayloadInt64 parses a single-field payload as int64.
func PayloadInt64(c tele.Context) (int64, error) {
	return strconv.ParseInt(CallbackPayload(c), 10, 64)
}
