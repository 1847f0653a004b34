// Package prompts holds the fixed prompt text used by the conversation
// session: the system persona, the content-seed template, and the
// preset quick questions offered by the UI.
package prompts

// Persona is the system prompt installed as the first transcript
// message of every session.
const Persona = "You are a video content assistant. Help users analyze video content, " +
	"suggest topics, titles, thumbnails, and provide content strategy advice."

// seedPrefix introduces the extracted content in the priming exchange.
const seedPrefix = "Here is the video content I want you to analyze and remember for our conversation: "

// Seed returns the user message that embeds the full extracted content
// for the priming exchange.
func Seed(content string) string {
	return seedPrefix + content
}

// AskFallback is returned to the caller when a question fails
// mid-stream. It is also appended to the transcript as the assistant
// turn so role alternation stays intact for the next question.
const AskFallback = "Sorry, I encountered an error processing your question."

// Preset quick questions. These exact strings are offered as one-click
// shortcuts and sent verbatim as user questions.
const (
	PresetSummary = "Provide a comprehensive summary of this video content"
	PresetTitles  = "Suggest 5 better, engaging titles for this video content"
	PresetTopics  = "What are the main topics and key points covered in this video?"
)

// Presets returns the quick questions in display order.
func Presets() []string {
	return []string{PresetSummary, PresetTitles, PresetTopics}
}
