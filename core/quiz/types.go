// Package quiz validates user-supplied quiz payloads into batches of
// question records ready for delivery as Telegram quiz polls.
package quiz

// Limits imposed by the downstream chat service on quiz polls.
const (
	MaxQuestions      = 50
	MaxQuestionLen    = 255
	MaxOptionLen      = 100
	MaxExplanationLen = 200
	MinOptions        = 2
	MaxOptions        = 4
)

// QuestionRecord is one validated multiple-choice question. Immutable once
// constructed by Validate.
type QuestionRecord struct {
	Text         string
	Options      []string
	CorrectIndex int
	Explanation  string
}

// Batch is an ordered set of validated questions tagged with the owning
// chat and the anonymity preference in effect at validation time.
type Batch struct {
	ChatID    int64
	Anonymous bool
	Questions []QuestionRecord
}
