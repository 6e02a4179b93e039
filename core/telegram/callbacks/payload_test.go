package callbacks

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	// Telebot prefixes raw callback data with a form feed.
	for _, data := range []string{"\fapprove|12345", "\\fapprove|12345"} {
		cb := &tele.Callback{Data: data}
		unique, payload := ParseCallbackData(cb)
		if unique != "approve" {
			t.Fatalf("unique = %q for %q", unique, data)
		}
		if payload != "12345" {
			t.Fatalf("payload = %q for %q", payload, data)
		}
	}
}

func TestEncodeFieldsKeepsUnderscores(t *testing.T) {
	// Values such as plan tags contain underscores and digits; encoding must
	// not split on them, only on the field separator.
	payload := EncodeFields("987654", "micro_influencer", "3months")
	fields := strings.Split(payload, FieldSep)
	if len(fields) != 3 {
		t.Fatalf("fields = %v", fields)
	}
	if fields[1] != "micro_influencer" {
		t.Fatalf("field 1 = %q", fields[1])
	}
}

func TestParseCallbackDataNoPayload(t *testing.T) {
	cb := &tele.Callback{Data: "\fdone"}
	unique, payload := ParseCallbackData(cb)
	if unique != "done" || payload != "" {
		t.Fatalf("got %q %q", unique, payload)
	}
}
