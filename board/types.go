package board

// Kind is the board item type as reported by the board API.
type Kind string

const (
	KindStickyNote Kind = "sticky_note"
	KindShape      Kind = "shape"
	KindText       Kind = "text"
)

// TextBearing reports whether items of this kind carry text worth prompting on.
func (k Kind) TextBearing() bool {
	switch k {
	case KindStickyNote, KindShape, KindText:
		return true
	}
	return false
}

// Item is the subset of a board item payload the relay reads.
type Item struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Data  ItemData `json:"data"`
	Text  string   `json:"text,omitempty"`
	Title string   `json:"title,omitempty"`
}

type ItemData struct {
	Content   string `json:"content,omitempty"`
	PlainText string `json:"plainText,omitempty"`
}

// ItemRef identifies an item and its kind.
type ItemRef struct {
	ID   string
	Kind Kind
}

func (it Item) Ref() ItemRef {
	return ItemRef{ID: it.ID, Kind: Kind(it.Type)}
}

// ExtractedText is sanitized, non-empty text taken from one source.
type ExtractedText struct {
	SourceID string
	Text     string
}

// Position places a new element on the board.
type Position struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Origin     string  `json:"origin,omitempty"`
	RelativeTo string  `json:"relativeTo,omitempty"`
}

// Geometry sizes a new element on the board.
type Geometry struct {
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Placement is where and how large a generated image lands on the board.
type Placement struct {
	Position Position
	Geometry Geometry
}

const DefaultImageWidth = 600

// NewPlacement fills in whatever the caller left out: the board center for
// position, a 600px square for geometry, and height equal to width.
func NewPlacement(pos *Position, geo *Geometry) Placement {
	p := Placement{
		Position: Position{X: 0, Y: 0, Origin: "center", RelativeTo: "canvas_center"},
		Geometry: Geometry{Width: DefaultImageWidth},
	}
	if pos != nil {
		p.Position = *pos
		if p.Position.Origin == "" {
			p.Position.Origin = "center"
		}
	}
	if geo != nil {
		p.Geometry = *geo
	}
	if p.Geometry.Width <= 0 {
		p.Geometry.Width = DefaultImageWidth
	}
	if p.Geometry.Height <= 0 {
		p.Geometry.Height = p.Geometry.Width
	}
	return p
}
