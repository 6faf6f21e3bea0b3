package generator

// Suggestions is the outcome of one ideation call.
type Suggestions struct {
	// Raw is the completion text as returned by the model.
	Raw string
	// Ideas are the individual "Idea N:" entries with the prefix removed.
	Ideas []string
}

// Artifact is a generated image and the text it was generated from.
type Artifact struct {
	SourceID string
	Prompt   string
	Image    []byte
}

// Style selects the image prompt template.
type Style int

const (
	// StyleBoard is for images placed on the board next to the source note.
	StyleBoard Style = iota
	// StyleSketch is for brainstorming sketches returned to the caller.
	StyleSketch
)
