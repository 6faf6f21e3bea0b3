package generator

import (
	"fmt"
	"strings"
)

// Prompt is the message set sent to the text model.
type Prompt struct {
	System string
	User   string
}

// IdeaCount is how many ideas every ideation prompt asks for.
const IdeaCount = 3

// BuildIdeationPrompt asks for three short reframing ideas about a sticky
// note. With customContext the stricter single-sentence contract is used.
func BuildIdeationPrompt(text, customContext string) Prompt {
	if strings.TrimSpace(customContext) != "" {
		return Prompt{User: buildContextPrompt(text, customContext)}
	}

	var sb strings.Builder
	sb.WriteString("You are a professional AI ideation assistant supporting UX designers and clients in a live ideation workshop on a whiteboard. ")
	sb.WriteString("Your role is to help the team stay in a generative, exploratory phase, not to propose solutions.\n\n")
	sb.WriteString(fmt.Sprintf("Based on the sticky note below, suggest %d new sticky notes that each:\n", IdeaCount))
	sb.WriteString("- Reframe or expand the original thought to open new directions.\n")
	sb.WriteString("- Use different thinking lenses, including but not limited to: technical, sustainability, data-driven, time-sensitive, ")
	sb.WriteString("accessibility, risk-aware, regulatory, scalability, financial, commercial, user-centric, innovative, and visionary.\n")
	sb.WriteString("- Pose a question, challenge an assumption, or introduce a fresh lens rather than a defined concept.\n\n")
	sb.WriteString("Avoid naming tools, services, features, or systems. Do not propose fully-formed solutions. ")
	sb.WriteString("Focus on sparking curiosity, discussion, and creative momentum. ")
	sb.WriteString("Use clear, simple language understandable to both designers and clients. ")
	sb.WriteString("Limit each sticky note to 10 words or fewer.\n\n")
	sb.WriteString(fmt.Sprintf("Sticky Note: %q\n\n", text))
	sb.WriteString("Format your response like this (no markdown, asterisks, or hashes):\n\n")
	sb.WriteString("Idea 1: 10 words max provoking further exploration or variation of the idea.\n\n")
	for i := 2; i <= IdeaCount; i++ {
		sb.WriteString(fmt.Sprintf("Idea %d: ...\n", i))
		if i < IdeaCount {
			sb.WriteString("\n")
		}
	}
	return Prompt{User: sb.String()}
}

func buildContextPrompt(text, customContext string) string {
	var sb strings.Builder
	sb.WriteString("Respond to the sticky note and context below.\n\n")
	sb.WriteString("Respond with:\n")
	sb.WriteString("- Exactly three distinct ideas.\n")
	sb.WriteString("- Each idea must be a single sentence.\n")
	sb.WriteString("- Each sentence must begin with: Idea 1:, Idea 2:, and Idea 3: respectively.\n")
	sb.WriteString("- Do NOT add any explanation, follow-up, or extra content.\n")
	sb.WriteString("- Do NOT use markdown, bullets, or multiple lines.\n")
	sb.WriteString("- Your response MUST be exactly three sentences and nothing more.\n\n")
	sb.WriteString(fmt.Sprintf("Sticky Note: %q\n", text))
	sb.WriteString(fmt.Sprintf("Context: %q", strings.TrimSpace(customContext)))
	return sb.String()
}

// BuildImagePrompt wraps a theme for an image that is placed on the board.
func BuildImagePrompt(text string) string {
	return fmt.Sprintf("Create a clean, high-quality image that visually represents this theme: '%s'. ", text) +
		"Depict a realistic scene or metaphor involving people, environments, or objects. " +
		"The image should have a modern, simple aesthetic with minimal visual clutter. " +
		"There should be absolutely no text, labels, signs, symbols, characters, or written language in the image. " +
		"Do not include UI elements, instructions, buttons, or any form of on-screen text. " +
		"The image should have one clear subject and a neutral or soft background."
}

// BuildSketchPrompt wraps a theme for a brainstorming sketch returned to the caller.
func BuildSketchPrompt(text string) string {
	return "An image illustrating the core ideas of a UX brainstorming session. " +
		fmt.Sprintf("Theme: '%s'. ", text) +
		"Create a clean, high-quality, professional image that visually represents the theme. " +
		"Can include people, objects, or environments. Use simple, clear composition with a modern aesthetic. " +
		"Minimal visual clutter. No text. Neutral or soft background. " +
		"Design should support UX ideation by conveying the concept in an intuitive and visually engaging way."
}
