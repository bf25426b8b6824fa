package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quizbot/core/health"
	"quizbot/core/quiz"
	"quizbot/core/session"
)

type sentMessage struct {
	chatID  int64
	text    string
	choices [][]Choice
}

type fakeMessenger struct {
	messages []sentMessage
	edits    []sentMessage
	polls    []quiz.QuestionRecord

	nextMessageID int
	failPollAt    map[int]error // 1-based poll send index
	sendErr       error
	editErr       error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{failPollAt: map[int]error{}}
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, choices [][]Choice) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.messages = append(f.messages, sentMessage{chatID: chatID, text: text, choices: choices})
	f.nextMessageID++
	return f.nextMessageID, nil
}

func (f *fakeMessenger) SendQuizPoll(_ context.Context, _ int64, q quiz.QuestionRecord, _ bool) error {
	n := len(f.polls) + 1
	f.polls = append(f.polls, q)
	if err, ok := f.failPollAt[n]; ok {
		return err
	}
	return nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, chatID int64, _ int, text string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeMessenger) lastText() string {
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1].text
}

func newTestWorkflow(m Messenger) (*Workflow, *session.Store) {
	store := session.NewStore(session.Options{MaxUsers: 50, TTL: time.Hour})
	w := New(store, m, health.NewMonitor(0))
	w.sleep = func(time.Duration) {}
	return w, store
}

func mustState(t *testing.T, store *session.Store, userID int64, want session.State) {
	t.Helper()
	sess, ok := store.Get(userID)
	if !ok {
		t.Fatalf("session for user %d missing", userID)
	}
	if sess.State != want {
		t.Fatalf("state = %q, want %q", sess.State, want)
	}
}

func TestStartEntersChoosingType(t *testing.T) {
	m := newFakeMessenger()
	w, store := newTestWorkflow(m)

	w.OnCommand(context.Background(), "start", 1, 100, "Alice")

	mustState(t, store, 1, session.StateChoosingType)
	sess, _ := store.Get(1)
	if !sess.Anonymous {
		t.Fatal("start must reset preference to anonymous")
	}
	if len(m.messages) != 2 {
		t.Fatalf("messages = %d, want welcome + menu", len(m.messages))
	}
	if !strings.Contains(m.messages[0].text, "Alice") {
		t.Fatalf("welcome missing user name: %q", m.messages[0].text)
	}
	menu := m.messages[1]
	if len(menu.choices) != 2 {
		t.Fatalf("menu rows = %d, want 2", len(menu.choices))
	}
	if menu.choices[0][0].Data != CallbackAnonymous || menu.choices[1][0].Data != CallbackNonAnonymous {
		t.Fatalf("unexpected callback data: %+v", menu.choices)
	}
}

func TestCallbackSelectsTypeAndAdvances(t *testing.T) {
	m := newFakeMessenger()
	w, store := newTestWorkflow(m)

	w.OnCommand(context.Background(), "start", 1, 100, "")
	w.OnCallback(context.Background(), CallbackNonAnonymous, 1, 100, 1)

	mustState(t, store, 1, session.StateWaitingForJSON)
	sess, _ := store.Get(1)
	if sess.Anonymous {
		t.Fatal("non-anonymous callback must clear the flag")
	}
	if len(m.edits) != 1 {
		t.Fatalf("edits = %d, want selection confirmation", len(m.edits))
	}
	// Template then instructions follow the edited confirmation.
	if m.messages[len(m.messages)-2].text != templateJSON {
		t.Fatal("template JSON not sent after selection")
	}
}

func TestCallbackUnknownDataIgnored(t *testing.T) {
	m := newFakeMessenger()
	w, store := newTestWorkflow(m)

	w.OnCommand(context.Background(), "start", 1, 100, "")
	before := len(m.messages)
	w.OnCallback(context.Background(), "garbage", 1, 100, 1)

	mustState(t, store, 1, session.StateChoosingType)
	if len(m.messages) != before || len(m.edits) != 0 {
		t.Fatal("unknown callback must not send anything")
	}
}

func TestTextOutsideWaitingStateRestarts(t *testing.T) {
	m := newFakeMessenger()
	w, store := newTestWorkflow(m)

	w.OnText(context.Background(), "hello there", 7, 700)

	mustState(t, store, 7, session.StateChoosingType)
	if len(m.polls) != 0 {
		t.Fatal("free text outside the payload state must not produce polls")
	}
	if m.messages[0].text != wrongStateMessage {
		t.Fatalf("first message = %q, want wrong-state hint", m.messages[0].text)
	}
}

func TestPayloadDeliversBatchAndReturnsToMenu(t *testing.T) {
	m := newFakeMessenger()
	w, store := newTestWorkflow(m)

	w.OnCommand(context.Background(), "start", 1, 100, "")
	w.OnCallback(context.Background(), CallbackAnonymous, 1, 100, 1)
	w.OnText(context.Background(), `{"all_q":[
		{"q":"A?","o":["1","2"],"c":0},
		{"q":"B?","o":["1","2"],"c":1},
		{"q":"C?","o":["1","2"],"c":0}]}`, 1, 100)

	if len(m.polls) != 3 {
		t.Fatalf("polls = %d, want 3", len(m.polls))
	}
	found := false
	for _, e := range m.edits {
		if strings.Contains(e.text, "3 of 3") {
			found = true
		}
	}
	if !found {
		t.Fatal("completion message with 3 of 3 not sent")
	}
	mustState(t, store, 1, session.StateChoosingType)
}

func TestPayloadPartialDeliveryReportsCount(t *testing.T) {
	m := newFakeMessenger()
	m.failPollAt[2] = errors.New("boom")
	w, store := newTestWorkflow(m)

	w.OnCommand(context.Background(), "start", 1, 100, "")
	w.OnCallback(context.Background(), CallbackAnonymous, 1, 100, 1)
	w.OnText(context.Background(), `{"all_q":[
		{"q":"A?","o":["1","2"],"c":0},
		{"q":"B?","o":["1","2"],"c":1},
		{"q":"C?","o":["1","2"],"c":0}]}`, 1, 100)

	// One failed send must not stop delivery of the remaining questions.
	if len(m.polls) != 3 {
		t.Fatalf("polls attempted = %d, want 3", len(m.polls))
	}
	found := false
	for _, e := range m.edits {
		if strings.Contains(e.text, "2 of 3") {
			found = true
		}
	}
	if !found {
		t.Fatal("completion message with 2 of 3 not sent")
	}
	mustState(t, store, 1, session.StateChoosingType)
}

func TestPayloadAllFailedReportsFailure(t *testing.T) {
	m := newFakeMessenger()
	m.failPollAt[1] = errors.New("boom")
	m.failPollAt[2] = errors.New("boom")
	w, store := newTestWorkflow(m)

	w.OnCommand(context.Background(), "start", 1, 100, "")
	w.OnCallback(context.Background(), CallbackAnonymous, 1, 100, 1)
	w.OnText(context.Background(), `{"all_q":[
		{"q":"A?","o":["1","2"],"c":0},
		{"q":"B?","o":["1","2"],"c":1}]}`, 1, 100)

	found := false
	for _, e := range m.edits {
		if e.text == sendFailedMessage {
			found = true
		}
	}
	if !found {
		t.Fatal("all-failed batch must report the send failure")
	}
	mustState(t, store, 1, session.StateChoosingType)
}

func TestMalformedPayloadRejectedAndMenuReoffered(t *testing.T) {
	m := newFakeMessenger()
	w, store := newTestWorkflow(m)

	w.OnCommand(context.Background(), "start", 1, 100, "")
	w.OnCallback(context.Background(), CallbackAnonymous, 1, 100, 1)
	w.OnText(context.Background(), "{not json", 1, 100)

	if len(m.polls) != 0 {
		t.Fatal("malformed payload must not produce polls")
	}
	found := false
	for _, e := range m.edits {
		if e.text == malformedMessage {
			found = true
		}
	}
	if !found {
		t.Fatal("malformed payload message not delivered")
	}
	mustState(t, store, 1, session.StateChoosingType)
	if m.lastText() != typeSelectionMessage {
		t.Fatalf("menu not re-offered, last = %q", m.lastText())
	}
}

func TestAdaptiveDelaySlowsAfterFailure(t *testing.T) {
	m := newFakeMessenger()
	m.failPollAt[1] = errors.New("boom")
	store := session.NewStore(session.Options{MaxUsers: 50, TTL: time.Hour})
	w := New(store, m, nil)
	var slept []time.Duration
	w.sleep = func(d time.Duration) { slept = append(slept, d) }

	batch := &quiz.Batch{ChatID: 100, Anonymous: true, Questions: []quiz.QuestionRecord{
		{Text: "A?", Options: []string{"1", "2"}},
		{Text: "B?", Options: []string{"1", "2"}},
		{Text: "C?", Options: []string{"1", "2"}},
	}}
	if got := w.sendBatch(context.Background(), batch); got != 2 {
		t.Fatalf("delivered = %d, want 2", got)
	}
	if len(slept) != 2 {
		t.Fatalf("delays = %d, want 2 (no delay after the last question)", len(slept))
	}
	for _, d := range slept {
		if d != dirtySendDelay {
			t.Fatalf("delay after failure = %v, want %v", d, dirtySendDelay)
		}
	}
}

func TestAdaptiveDelayFastWhileClean(t *testing.T) {
	m := newFakeMessenger()
	store := session.NewStore(session.Options{MaxUsers: 50, TTL: time.Hour})
	w := New(store, m, nil)
	var slept []time.Duration
	w.sleep = func(d time.Duration) { slept = append(slept, d) }

	batch := &quiz.Batch{ChatID: 100, Anonymous: true, Questions: []quiz.QuestionRecord{
		{Text: "A?", Options: []string{"1", "2"}},
		{Text: "B?", Options: []string{"1", "2"}},
	}}
	if got := w.sendBatch(context.Background(), batch); got != 2 {
		t.Fatalf("delivered = %d, want 2", got)
	}
	if len(slept) != 1 || slept[0] != cleanSendDelay {
		t.Fatalf("delays = %v, want one %v", slept, cleanSendDelay)
	}
}

type panicMessenger struct{ fakeMessenger }

func (p *panicMessenger) SendQuizPoll(context.Context, int64, quiz.QuestionRecord, bool) error {
	panic("handler bug")
}

func TestInternalFaultResetsSession(t *testing.T) {
	m := &panicMessenger{*newFakeMessenger()}
	store := session.NewStore(session.Options{MaxUsers: 50, TTL: time.Hour})
	w := New(store, m, nil)
	w.sleep = func(time.Duration) {}

	w.OnCommand(context.Background(), "start", 1, 100, "")
	w.OnCallback(context.Background(), CallbackAnonymous, 1, 100, 1)
	w.OnText(context.Background(), `{"all_q":[{"q":"A?","o":["1","2"],"c":0}]}`, 1, 100)

	mustState(t, store, 1, session.StateChoosingType)
	if m.lastText() != genericFailureMessage {
		t.Fatalf("last = %q, want generic failure", m.lastText())
	}
}

func TestToggleShowsCurrentPreference(t *testing.T) {
	m := newFakeMessenger()
	w, _ := newTestWorkflow(m)

	w.OnCommand(context.Background(), "toggle", 1, 100, "")

	if len(m.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(m.messages))
	}
	if !strings.Contains(m.messages[0].text, "Anonymous") {
		t.Fatalf("toggle text = %q", m.messages[0].text)
	}
	if len(m.messages[0].choices) != 2 {
		t.Fatalf("toggle must offer both options, got %+v", m.messages[0].choices)
	}
}

func TestStatusIncludesHealthAndSessions(t *testing.T) {
	m := newFakeMessenger()
	mon := health.NewMonitor(0)
	mon.RecordSuccess()
	mon.RecordSuccess()
	mon.RecordFailure()
	store := session.NewStore(session.Options{MaxUsers: 50, TTL: time.Hour})
	w := New(store, m, mon)
	w.sleep = func(time.Duration) {}

	w.OnCommand(context.Background(), "status", 1, 100, "Bob")

	text := m.lastText()
	if !strings.Contains(text, "Bob") {
		t.Fatalf("status missing user name: %q", text)
	}
	if !strings.Contains(text, "2 ok / 1 failed") {
		t.Fatalf("status missing call counters: %q", text)
	}
	if !strings.Contains(text, "Active sessions: 1") {
		t.Fatalf("status missing session count: %q", text)
	}
}

func TestUnknownCommandHints(t *testing.T) {
	m := newFakeMessenger()
	w, _ := newTestWorkflow(m)

	w.OnCommand(context.Background(), "frobnicate", 1, 100, "")

	if m.lastText() != unknownCommandMessage {
		t.Fatalf("last = %q, want unknown command hint", m.lastText())
	}
}

func TestTemplateCommandSendsCopyablePayload(t *testing.T) {
	m := newFakeMessenger()
	w, _ := newTestWorkflow(m)

	w.OnCommand(context.Background(), "template", 1, 100, "")

	if len(m.messages) != 3 {
		t.Fatalf("messages = %d, want intro + template + outro", len(m.messages))
	}
	if m.messages[1].text != templateJSON {
		t.Fatalf("template payload not sent verbatim: %q", m.messages[1].text)
	}
}
