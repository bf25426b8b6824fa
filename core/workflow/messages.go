package workflow

import (
	"fmt"
	"time"

	"quizbot/core/buildinfo"
	"quizbot/core/health"
	"quizbot/core/telegram/format"
)

// templateJSON is the sample payload sent to users as a copyable message.
const templateJSON = `{"all_q":[{"q":"Capital of France? 🇫🇷","o":["London","Paris","Berlin","Madrid"],"c":1,"e":"Paris is the capital and largest city of France 🗼"},{"q":"What is 2+2? 🔢","o":["3","4","5","6"],"c":1,"e":"Basic addition: 2+2=4 ✅"}]}`

const welcomeBody = "🎯 *Simple Quiz Bot* ⚡\n\n" +
	"✨ Create MCQ quizzes instantly!\n\n" +
	"💡 *Rules:*\n" +
	"• `q` = question, `o` = options, `c` = correct, `e` = explanation\n" +
	"• `c` starts from 0 (0=A, 1=B, 2=C, 3=D)\n" +
	"• 2-4 options allowed per question\n" +
	"• Keep text short to fit Telegram limits"

const typeSelectionMessage = "🎭 *Choose Your Quiz Style:*\n\n" +
	"🔒 *Anonymous Quiz:* can be forwarded to channels, voters stay private.\n" +
	"👤 *Non-Anonymous Quiz:* shows who answered, cannot be forwarded.\n\n" +
	"*Which style do you prefer?* 👇"

const helpMessage = "🆘 *Quiz Bot Help* 📚\n\n" +
	"🤖 *Commands:*\n" +
	"• /start — begin quiz creation\n" +
	"• /quickstart — quick 5-step guide\n" +
	"• /template — get the JSON template\n" +
	"• /status — bot health & settings\n" +
	"• /toggle — switch quiz types\n\n" +
	"📚 *JSON format:*\n" +
	"• `all_q` — questions array\n" +
	"• `q` — question text\n" +
	"• `o` — answer options (2-4 choices)\n" +
	"• `c` — correct answer index (0=A, 1=B, 2=C, 3=D)\n" +
	"• `e` — explanation (optional)"

const quickstartMessage = "⚡ *Quick Start:*\n\n" +
	"1️⃣ Use /template to get the JSON format\n" +
	"2️⃣ Give the template to an AI assistant\n" +
	"3️⃣ Ask it to fill in your questions in the same format\n" +
	"4️⃣ Send the customized JSON back to me\n" +
	"5️⃣ Get instant interactive quizzes! 🎯"

const (
	processingMessage     = "🔄 *Processing your quiz JSON...* ⚡"
	restartMessage        = "🎉 *Ready for another quiz?* ✨"
	wrongStateMessage     = "🔄 *Let's start properly!* Use /start ✨"
	genericFailureMessage = "❌ *Something went wrong.* Please try again 🔄"
	sendFailedMessage     = "❌ *Failed to send quizzes.* Please try again 🔄"
	malformedMessage      = "❌ *Invalid JSON format!* Use /template for the correct format 📋"
	noQuestionsMessage    = "❌ *No questions found!* Use /template for the correct format 📋"
	noValidQuestionsMsg   = "❌ *No valid questions found!* Check your JSON format 📋"
	unknownCommandMessage = "🤔 Unknown command. Use /help for the command list."
	templateIntroMessage  = "📋 *JSON Template:* 🎯"
	templateOutroMessage  = "💡 *Copy the template above, hand it to an AI assistant, and ask it to fill in your questions.* 🤖"
)

func welcomeMessage(userName string) string {
	name, err := format.EscapeMarkdown(userName, format.MarkdownV1, "")
	if err != nil || name == "" {
		name = "Friend"
	}
	return fmt.Sprintf("👋 Hello *%s*! 🌟\n\n%s", name, welcomeBody)
}

func quizTypeLabel(anonymous bool) string {
	if anonymous {
		return "🔒 Anonymous"
	}
	return "👤 Non-Anonymous"
}

func typeSelectedMessage(anonymous bool) string {
	return fmt.Sprintf("✅ *%s Quiz Selected!* 🎉\n\n⭐ *JSON template coming...* ⚡", quizTypeLabel(anonymous))
}

func payloadInstructionsMessage(anonymous bool) string {
	return fmt.Sprintf("✅ *%s Quiz Selected!*\n\n"+
		"📝 *Next steps:*\n"+
		"1️⃣ Copy the JSON template above\n"+
		"2️⃣ Replace the questions with your own\n"+
		"3️⃣ Send the JSON back to me 👇⚡", quizTypeLabel(anonymous))
}

func validatedMessage(count int, anonymous bool) string {
	return fmt.Sprintf("✅ *%d questions validated!* 🎯\n🚀 Sending %s polls... ⚡", count, quizTypeLabel(anonymous))
}

func completionMessage(delivered, total int, anonymous bool) string {
	return fmt.Sprintf("🎯 *%d of %d %s quizzes delivered!* ✅", delivered, total, quizTypeLabel(anonymous))
}

func toggleMessage(anonymous bool) string {
	return fmt.Sprintf("⚙️ *Current setting:* %s\n\n🔄 Choose your preferred quiz type: 👇", quizTypeLabel(anonymous))
}

func statusMessage(userName string, chatID int64, anonymous bool, snap health.Snapshot, sessions int) string {
	name, err := format.EscapeMarkdown(userName, format.MarkdownV1, "")
	if err != nil || name == "" {
		name = "Friend"
	}
	mark := "✅ healthy"
	if !snap.Healthy {
		mark = "⚠️ degraded"
	}
	return fmt.Sprintf("📊 *Bot Status* %s\n\n"+
		"👤 User: %s\n"+
		"💬 Chat ID: %d\n"+
		"🎭 Quiz type: %s\n"+
		"👥 Active sessions: %d\n\n"+
		"📈 API calls: %d ok / %d failed (%.1f%%)\n"+
		"⏱ Uptime: %s\n"+
		"🏷 Version: %s",
		mark, name, chatID, quizTypeLabel(anonymous), sessions,
		snap.SuccessCount, snap.FailureCount, snap.SuccessRate,
		snap.Uptime.Round(time.Second), buildinfo.Version)
}
