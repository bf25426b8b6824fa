package quiz

import (
	"encoding/json"
	"math"
	"strconv"
)

// Alias key lists evaluated in priority order. Different payload producers
// (hand-written JSON, LLM output, older clients) disagree on field names;
// the ordered lookups below are a stable compatibility contract.
var (
	questionListKeys = []string{"all_q", "q", "questions", "all_questions", "quiz", "data"}
	textKeys         = []string{"q", "question", "text", "question_text"}
	optionKeys       = []string{"o", "options", "choices", "answers"}
	correctKeys      = []string{"c", "correct", "correct_option_id", "answer", "correct_answer"}
	explanationKeys  = []string{"e", "explanation", "desc", "description"}
)

// Validate parses raw text into a sendable Batch, or returns a
// *RejectionReason describing why nothing was sendable. It is a pure
// function: malformed entries are dropped, out-of-range correct indexes are
// clamped to 0, and entries beyond MaxQuestions are silently discarded.
func Validate(raw string, chatID int64, anonymous bool) (*Batch, error) {
	var payload interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, ErrMalformedPayload
	}

	entries, ok := locateQuestionList(payload)
	if !ok {
		return nil, ErrNoQuestions
	}

	questions := make([]QuestionRecord, 0, len(entries))
	for _, entry := range entries {
		if len(questions) >= MaxQuestions {
			break
		}
		if record, ok := buildQuestion(entry); ok {
			questions = append(questions, record)
		}
	}

	if len(questions) == 0 {
		return nil, ErrNoValidQuestions
	}
	return &Batch{ChatID: chatID, Anonymous: anonymous, Questions: questions}, nil
}

func locateQuestionList(payload interface{}) ([]interface{}, bool) {
	switch v := payload.(type) {
	case map[string]interface{}:
		for _, key := range questionListKeys {
			if raw, present := v[key]; present {
				list, ok := raw.([]interface{})
				if !ok || len(list) == 0 {
					return nil, false
				}
				return list, true
			}
		}
		return nil, false
	case []interface{}:
		// A bare top-level array is accepted as the question list itself.
		if len(v) == 0 {
			return nil, false
		}
		return v, true
	default:
		return nil, false
	}
}

func buildQuestion(entry interface{}) (QuestionRecord, bool) {
	fields, ok := entry.(map[string]interface{})
	if !ok {
		return QuestionRecord{}, false
	}

	text, ok := lookupText(fields, textKeys)
	if !ok {
		return QuestionRecord{}, false
	}

	options, ok := lookupOptions(fields)
	if !ok {
		return QuestionRecord{}, false
	}

	correct := lookupCorrect(fields, len(options))
	explanation, _ := lookupText(fields, explanationKeys)

	return QuestionRecord{
		Text:         truncate(text, MaxQuestionLen),
		Options:      options,
		CorrectIndex: correct,
		Explanation:  truncate(explanation, MaxExplanationLen),
	}, true
}

func lookupText(fields map[string]interface{}, keys []string) (string, bool) {
	for _, key := range keys {
		if raw, present := fields[key]; present {
			if s := stringify(raw); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func lookupOptions(fields map[string]interface{}) ([]string, bool) {
	for _, key := range optionKeys {
		raw, present := fields[key]
		if !present {
			continue
		}
		list, ok := raw.([]interface{})
		if !ok || len(list) < MinOptions || len(list) > MaxOptions {
			return nil, false
		}
		options := make([]string, 0, len(list))
		for _, item := range list {
			options = append(options, truncate(stringify(item), MaxOptionLen))
		}
		return options, true
	}
	return nil, false
}

// lookupCorrect resolves the correct-answer index, defaulting to 0 when the
// field is absent and clamping non-integer or out-of-range values to 0
// rather than dropping the entry.
func lookupCorrect(fields map[string]interface{}, optionCount int) int {
	for _, key := range correctKeys {
		raw, present := fields[key]
		if !present || raw == nil {
			continue
		}
		idx, ok := intFrom(raw)
		if !ok || idx < 0 || idx >= optionCount {
			return 0
		}
		return idx
	}
	return 0
}

func intFrom(v interface{}) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return int(f), true
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
