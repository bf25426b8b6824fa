package middleware

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackUnique(t *testing.T) {
	cb := &tele.Callback{Unique: "anonymous_true", Data: "payload"}
	key, payload := ParseCallback(cb)
	if key != "anonymous_true" || payload != "payload" {
		t.Fatalf("got (%q, %q)", key, payload)
	}
}

func TestParseCallbackRawData(t *testing.T) {
	cb := &tele.Callback{Data: "\fanonymous_false|extra"}
	key, payload := ParseCallback(cb)
	if key != "anonymous_false" || payload != "extra" {
		t.Fatalf("got (%q, %q)", key, payload)
	}
}

func TestParseCallbackPlainData(t *testing.T) {
	cb := &tele.Callback{Data: "anonymous_true"}
	key, payload := ParseCallback(cb)
	if key != "anonymous_true" || payload != "" {
		t.Fatalf("got (%q, %q)", key, payload)
	}
}

func TestParseCallbackNil(t *testing.T) {
	key, payload := ParseCallback(nil)
	if key != "" || payload != "" {
		t.Fatalf("got (%q, %q)", key, payload)
	}
}

func TestAlreadyLoggedDeduplicates(t *testing.T) {
	if alreadyLogged(991234) {
		t.Fatal("first sighting must not be marked as logged")
	}
	if !alreadyLogged(991234) {
		t.Fatal("second sighting must be deduplicated")
	}
}
