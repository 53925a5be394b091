package planning

import (
	"strings"
)

// Block types understood by ExtractDescription.
const (
	BlockParagraph = "paragraph"
	BlockHeading1  = "heading_1"
	BlockHeading2  = "heading_2"
	BlockHeading3  = "heading_3"
	BlockBullet    = "bulleted_list_item"
	BlockNumbered  = "numbered_list_item"
)

const bullet = "• "

// Block is the text of one page block.
type Block struct {
	Type string
	Text string
}

// text renders a block the way it appears in a caption. Unsupported block
// types yield false.
func (b Block) text() (string, bool) {
	switch b.Type {
	case BlockParagraph, BlockHeading1, BlockHeading2, BlockHeading3, BlockNumbered:
		return b.Text, true
	case BlockBullet:
		return bullet + b.Text, true
	}
	return "", false
}

// ExtractDescription collects the blocks after the first heading of
// headingType containing heading (case-insensitive) up to the next heading
// of the same type, and formats them with FormatCaption. It returns "" when
// the heading is missing or the section is empty.
func ExtractDescription(blocks []Block, heading, headingType string) string {
	var parts []string
	found := false
	needle := strings.ToLower(heading)
	for _, b := range blocks {
		if b.Type == headingType {
			if !found && strings.Contains(strings.ToLower(b.Text), needle) {
				found = true
				continue
			}
			if found {
				break
			}
		}
		if !found {
			continue
		}
		if s, ok := b.text(); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return FormatCaption(parts)
}

// FormatCaption joins caption blocks with a blank line between them, except
// between two consecutive bullet points. Blank blocks are dropped.
func FormatCaption(blocks []string) string {
	var kept []string
	for _, b := range blocks {
		if s := strings.TrimSpace(b); s != "" {
			kept = append(kept, s)
		}
	}
	var sb strings.Builder
	for i, b := range kept {
		if i > 0 {
			sb.WriteByte('\n')
			if !(strings.HasPrefix(kept[i-1], "•") && strings.HasPrefix(b, "•")) {
				sb.WriteByte('\n')
			}
		}
		sb.WriteString(b)
	}
	return sb.String()
}
