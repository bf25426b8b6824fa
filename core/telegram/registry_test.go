package telegram

import (
	"testing"

	"quizbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	reg := NewRegistry()

	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start"})
	reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/nohandler", commands.Command{Description: "missing handler"})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "duplicate"})

	if got := len(reg.Commands()); got != 1 {
		t.Fatalf("registered commands = %d, want 1", got)
	}
	if _, _, ok := reg.LookupCommand("/start"); !ok {
		t.Fatal("registered command not found")
	}
}

func TestLookupCommandAliases(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/help", commands.Command{
		Handler:     noop,
		Description: "help",
		Aliases:     []string{"h"},
	})

	key, _, ok := reg.LookupCommand("/h")
	if !ok || key != "/help" {
		t.Fatalf("alias lookup = (%q, %v), want (/help, true)", key, ok)
	}
	if _, _, ok := reg.LookupCommand("help"); !ok {
		t.Fatal("slash-less lookup must resolve")
	}
}

func TestListCommandsSortedAndFiltered(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/toggle", commands.Command{Handler: noop, Description: "toggle"})
	reg.RegisterCommand("/help", commands.Command{Handler: noop, Description: "help"})
	reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "debug", Hidden: true})

	list := reg.ListCommands(true)
	if len(list) != 2 {
		t.Fatalf("visible commands = %d, want 2", len(list))
	}
	if list[0].Text != "/help" || list[1].Text != "/toggle" {
		t.Fatalf("commands not sorted: %+v", list)
	}
}

func TestRegisterCallbackDuplicateKept(t *testing.T) {
	reg := NewRegistry()
	first := func(tele.Context) error { return nil }
	reg.RegisterCallback("key", first)
	reg.RegisterCallback("key", func(tele.Context) error { return nil })

	h, ok := reg.GetCallback("key")
	if !ok || h == nil {
		t.Fatal("callback lost after duplicate registration")
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"/Start":    "start",
		"  ":        "unknown",
		"two words": "two_words",
		"anonymous": "anonymous",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Errorf("normalizeHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}
