package ai

// Fixed instructions and temperatures. Callers cannot override them so that
// every note gets the same output shape.
const (
	SummaryInstruction = "Summarize for quick recall in <=40 words. No fluff."
	SummaryTemperature = 0.2

	TagsInstruction = "Return ONLY a JSON array (5-10 strings, 1-3 words each) of tags to categorize the note."
	TagsTemperature = 0.1
)

// SummaryMessages builds the summary request for text.
func SummaryMessages(text string) []Message {
	return []Message{
		{Role: RoleSystem, Content: SummaryInstruction},
		{Role: RoleUser, Content: text},
	}
}

// TagsMessages builds the tag proposal request for text.
func TagsMessages(text string) []Message {
	return []Message{
		{Role: RoleSystem, Content: TagsInstruction},
		{Role: RoleUser, Content: text},
	}
}
