package extract

import "fmt"

// taskPrompt fixes the output shape for task extraction: title, optional
// due date in ISO or relative form, and a tag list.
const taskPromptTemplate = `You are a task extraction assistant.
Analyze the following text and extract actionable tasks.
Return a list of tasks in PURE JSON format (no markdown).

Text: %q

Output Schema:
[
    {
        "title": "string (actionable task description)",
        "due_date": "string (ISO date or relative time like 'tomorrow 5pm', or null)",
        "tags": ["string (category tags)"]
    }
]`

func taskPrompt(freeText string) string {
	return fmt.Sprintf(taskPromptTemplate, freeText)
}

const linkPromptTemplate = `Analyze the following text content from the URL: %s

[BEGIN CONTENT]
%s
[END CONTENT]

1. Generate a concise summary.
2. Generate 3-5 relevant tags.

Output PURE JSON without markdown formatting.
JSON structure:
{
    "title": "Page Title (Extracted or Generated)",
    "summary": "Concise summary...",
    "tags": ["tag1", "tag2"]
}`

func linkPrompt(url, content string) string {
	return fmt.Sprintf(linkPromptTemplate, url, content)
}
