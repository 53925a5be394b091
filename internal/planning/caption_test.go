package planning

import "testing"

func TestFormatCaption(t *testing.T) {
	tests := []struct {
		name   string
		blocks []string
		want   string
	}{
		{"empty", nil, ""},
		{"paragraphs", []string{"First.", "Second."}, "First.\n\nSecond."},
		{"bullets stay tight", []string{"• a", "• b", "• c"}, "• a\n• b\n• c"},
		{"mixed", []string{"Intro", "• a", "• b", "Outro"}, "Intro\n\n• a\n• b\n\nOutro"},
		{"blank blocks dropped", []string{"  One  ", "", "   ", "Two"}, "One\n\nTwo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCaption(tt.blocks); got != tt.want {
				t.Errorf("FormatCaption = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractDescription(t *testing.T) {
	blocks := []Block{
		{Type: BlockHeading2, Text: "Script"},
		{Type: BlockParagraph, Text: "not part of the caption"},
		{Type: BlockHeading2, Text: "📝 Description"},
		{Type: BlockParagraph, Text: "Hook line"},
		{Type: BlockHeading3, Text: "Sub heading kept"},
		{Type: BlockBullet, Text: "first"},
		{Type: BlockBullet, Text: "second"},
		{Type: "image", Text: "ignored"},
		{Type: BlockNumbered, Text: "Follow for more"},
		{Type: BlockHeading2, Text: "Notes"},
		{Type: BlockParagraph, Text: "after the section"},
	}
	want := "Hook line\n\nSub heading kept\n\n• first\n• second\n\nFollow for more"
	if got := ExtractDescription(blocks, "description", BlockHeading2); got != want {
		t.Errorf("ExtractDescription =\n%q\nwant\n%q", got, want)
	}
	if got := ExtractDescription(blocks, "missing", BlockHeading2); got != "" {
		t.Errorf("expected empty description, got %q", got)
	}
	if got := ExtractDescription(blocks, "description", BlockHeading1); got != "" {
		t.Errorf("heading type must match, got %q", got)
	}
}
