package planning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// Page is one row of the planning database.
type Page struct {
	ID          string
	Title       string
	Status      string
	VideoPath   string
	ScheduledAt time.Time
}

// Source reads the planning database.
type Source interface {
	// Pages returns every page sorted by scheduled time.
	Pages(ctx context.Context) ([]Page, error)
	// Blocks returns the top-level blocks of a page.
	Blocks(ctx context.Context, pageID string) ([]Block, error)
}

const pageSize = 100

// Notion reads the planning database through the Notion API.
type Notion struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
	props      Properties
}

// NewNotion returns a Source for the given database.
func NewNotion(token, databaseID string, props Properties) *Notion {
	return &Notion{
		client:     notionapi.NewClient(notionapi.Token(token)),
		databaseID: notionapi.DatabaseID(databaseID),
		props:      props,
	}
}

func (n *Notion) Pages(ctx context.Context) ([]Page, error) {
	req := &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{{
			Property:  n.props.ScheduledTime,
			Direction: notionapi.SortOrderASC,
		}},
		PageSize: pageSize,
	}
	var out []Page
	for {
		resp, err := n.client.Database.Query(ctx, n.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("query planning database: %w", err)
		}
		for _, p := range resp.Results {
			out = append(out, n.page(p))
		}
		if !resp.HasMore {
			return out, nil
		}
		req.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}

func (n *Notion) page(p notionapi.Page) Page {
	out := Page{ID: string(p.ID)}
	if prop, ok := p.Properties[n.props.ScheduledTime].(*notionapi.DateProperty); ok && prop.Date != nil && prop.Date.Start != nil {
		out.ScheduledAt = time.Time(*prop.Date.Start)
	}
	switch prop := p.Properties[n.props.VideoPath].(type) {
	case *notionapi.RichTextProperty:
		out.VideoPath = plain(prop.RichText)
	case *notionapi.FormulaProperty:
		out.VideoPath = prop.Formula.String
	}
	if prop, ok := p.Properties[n.props.Title].(*notionapi.TitleProperty); ok {
		out.Title = plain(prop.Title)
	}
	if prop, ok := p.Properties[n.props.Status].(*notionapi.StatusProperty); ok {
		out.Status = prop.Status.Name
	}
	return out
}

func (n *Notion) Blocks(ctx context.Context, pageID string) ([]Block, error) {
	var out []Block
	pg := &notionapi.Pagination{PageSize: pageSize}
	for {
		resp, err := n.client.Block.GetChildren(ctx, notionapi.BlockID(pageID), pg)
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", pageID, err)
		}
		for _, b := range resp.Results {
			if blk, ok := block(b); ok {
				out = append(out, blk)
			}
		}
		if !resp.HasMore {
			return out, nil
		}
		pg.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}

func block(b notionapi.Block) (Block, bool) {
	switch v := b.(type) {
	case *notionapi.ParagraphBlock:
		return Block{Type: BlockParagraph, Text: plain(v.Paragraph.RichText)}, true
	case *notionapi.Heading1Block:
		return Block{Type: BlockHeading1, Text: plain(v.Heading1.RichText)}, true
	case *notionapi.Heading2Block:
		return Block{Type: BlockHeading2, Text: plain(v.Heading2.RichText)}, true
	case *notionapi.Heading3Block:
		return Block{Type: BlockHeading3, Text: plain(v.Heading3.RichText)}, true
	case *notionapi.BulletedListItemBlock:
		return Block{Type: BlockBullet, Text: plain(v.BulletedListItem.RichText)}, true
	case *notionapi.NumberedListItemBlock:
		return Block{Type: BlockNumbered, Text: plain(v.NumberedListItem.RichText)}, true
	}
	return Block{}, false
}

func plain(rt []notionapi.RichText) string {
	var sb strings.Builder
	for _, t := range rt {
		sb.WriteString(t.PlainText)
	}
	return sb.String()
}
