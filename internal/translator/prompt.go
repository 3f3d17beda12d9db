package translator

import (
	"fmt"
	"strings"
)

// SystemPrompt builds the instructions sent with every request. extra is
// appended verbatim after the fixed rules.
func SystemPrompt(targetLanguage, extra string) string {
	var prompt strings.Builder

	prompt.WriteString("You are an experienced semantic translator.\n")
	prompt.WriteString("Follow the instructions carefully.\n")
	prompt.WriteString("You will receive user messages containing part of a subtitle SRT file formatted like this:\n\n")
	prompt.WriteString("```\n1. Message 1\n2. Message 2\n...\nN. Message N\n```\n\n")
	prompt.WriteString(fmt.Sprintf("You should respond in the same format and with the same number of points but translated to %s.\n\n", targetLanguage))

	prompt.WriteString("- ALWAYS remove non-text content from the subtitles, like HTML tags, or anything that is not readable by a human.\n")
	prompt.WriteString("- ALWAYS return the SAME number of points.\n")
	prompt.WriteString("- NEVER skip any point.\n")
	prompt.WriteString("- NEVER combine points.\n")
	prompt.WriteString("- ALWAYS remove branding, ads or urls that are not related to the content.\n\n")

	prompt.WriteString("You are translating a subtitle, so remember each point is something said in a timestamp and cannot be split or merged with other points. ")
	prompt.WriteString("To make translations sound natural they do not need to be literal. ")
	prompt.WriteString("Each point is related and in order; you can use the context to make a better translation.\n\n")

	prompt.WriteString("Remember not to merge points; the last point should be exactly the same number as the input. ")
	prompt.WriteString("If the input's last number is 7, the output you generate should also end with 7.\n\n")

	prompt.WriteString("Content starts here:\n")
	if extra = strings.TrimSpace(extra); extra != "" {
		prompt.WriteString("\n")
		prompt.WriteString(extra)
		prompt.WriteString("\n")
	}

	return prompt.String()
}
