package board

import (
	"context"

	"miro_ideation_relay/logging"
)

// extractor pulls one candidate text field out of an item.
type extractor func(Item) string

// textFields lists candidate fields in priority order. The first one that is
// non-empty after sanitizing wins.
var textFields = []extractor{
	func(it Item) string { return it.Data.Content },
	func(it Item) string { return it.Data.PlainText },
	func(it Item) string { return it.Text },
	func(it Item) string { return it.Title },
}

// ExtractText returns the sanitized text of a text-bearing item, or "" if
// the item has the wrong kind or no usable text.
func ExtractText(it Item) string {
	if !it.Ref().Kind.TextBearing() {
		return ""
	}
	for _, field := range textFields {
		if s := Sanitize(field(it)); s != "" {
			return s
		}
	}
	return ""
}

// ItemSource is the part of the board API the Resolver needs.
type ItemSource interface {
	Walk(ctx context.Context, boardID string, fn func(Item) bool) error
	Item(ctx context.Context, boardID, itemID string) (Item, error)
}

// Resolver maps selected item ids to prompt text.
type Resolver struct {
	items  ItemSource
	logger *logging.Logger
}

func NewResolver(items ItemSource, logger *logging.Logger) *Resolver {
	return &Resolver{items: items, logger: logger}
}

// Resolve lists the board once and keeps the requested, text-bearing items
// in board order. A failed listing aborts the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, boardID string, ids []string) ([]ExtractedText, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			wanted[id] = true
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	var out []ExtractedText
	remaining := len(wanted)
	err := r.items.Walk(ctx, boardID, func(it Item) bool {
		if !wanted[it.ID] {
			return true
		}
		delete(wanted, it.ID)
		remaining--
		if text := ExtractText(it); text != "" {
			out = append(out, ExtractedText{SourceID: it.ID, Text: text})
		} else {
			r.logger.Infof("board %s: item %s (%s) has no usable text", boardID, it.ID, it.Type)
		}
		return remaining > 0
	})
	if err != nil {
		return nil, err
	}
	r.logger.Infof("board %s: resolved %d of %d requested items", boardID, len(out), len(ids))
	return out, nil
}

// ResolveEach fetches the requested items one by one in request order.
// Items that cannot be fetched are logged and skipped.
func (r *Resolver) ResolveEach(ctx context.Context, boardID string, ids []string) []ExtractedText {
	seen := make(map[string]bool, len(ids))
	var out []ExtractedText
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		it, err := r.items.Item(ctx, boardID, id)
		if err != nil {
			r.logger.Warnf("couldn't fetch item %s: %v", id, err)
			continue
		}
		if text := ExtractText(it); text != "" {
			out = append(out, ExtractedText{SourceID: id, Text: text})
		}
	}
	return out
}
