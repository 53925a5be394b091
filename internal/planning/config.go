package planning

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// DefaultConfigPath is the planning configuration file.
const DefaultConfigPath = "notion_config.json"

// Config maps the planning database onto drafts.
type Config struct {
	Properties Properties `json:"database_properties"`
	Content    Content    `json:"content_extraction"`
	Filters    Filters    `json:"filters"`
	Output     Output     `json:"output"`
}

// Properties names the database columns.
type Properties struct {
	ScheduledTime string `json:"scheduled_time"`
	VideoPath     string `json:"video_path"`
	Title         string `json:"title"`
	Status        string `json:"status"`
}

// Content locates the caption inside a page.
type Content struct {
	DescriptionHeading     string `json:"description_heading"`
	DescriptionHeadingType string `json:"description_heading_type"`
}

// Filters selects the pages to sync.
type Filters struct {
	FutureOnly    *bool    `json:"future_videos_only"`
	ExcludePosted *bool    `json:"exclude_posted"`
	PostedValues  []string `json:"posted_status_values"`
}

// Output controls the draft ids.
type Output struct {
	Prefix string `json:"config_prefix"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Past pages and posted pages are skipped unless disabled.
func (f Filters) futureOnly() bool { return boolOr(f.FutureOnly, true) }

func (f Filters) excludePosted() bool { return boolOr(f.ExcludePosted, true) }

func (f Filters) postedValues() []string {
	if len(f.PostedValues) == 0 {
		return []string{"Posted"}
	}
	return f.PostedValues
}

// LoadConfig reads and validates the planning configuration.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("planning config: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	for _, section := range []string{"database_properties", "content_extraction", "filters", "output"} {
		if _, ok := raw[section]; !ok {
			return nil, fmt.Errorf("%s: missing section %q", path, section)
		}
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	if c.Properties.ScheduledTime == "" || c.Properties.VideoPath == "" {
		return nil, fmt.Errorf("%s: database_properties needs scheduled_time and video_path", path)
	}
	if c.Content.DescriptionHeadingType == "" {
		c.Content.DescriptionHeadingType = "heading_2"
	}
	if c.Output.Prefix == "" {
		c.Output.Prefix = "notion"
	}
	return &c, nil
}
