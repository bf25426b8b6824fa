package telegram

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestIsParseError(t *testing.T) {
	parseErr := &tele.Error{Code: 400, Description: "Bad Request: can't parse entities"}

	if !isParseError(parseErr) {
		t.Fatal("markdown parse rejection not detected")
	}
	if !isParseError(fmt.Errorf("send: %w", parseErr)) {
		t.Fatal("wrapped parse rejection not detected")
	}
	if isParseError(&tele.Error{Code: 400, Description: "Bad Request: chat not found"}) {
		t.Fatal("unrelated bad request must not trigger the fallback")
	}
	if isParseError(&tele.Error{Code: 403, Description: "Forbidden"}) {
		t.Fatal("non-400 must not trigger the fallback")
	}
	if isParseError(errors.New("plain")) {
		t.Fatal("non-API error must not trigger the fallback")
	}
	if isParseError(nil) {
		t.Fatal("nil error must not trigger the fallback")
	}
}
