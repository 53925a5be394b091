// Package record implements the post record store: a directory of JSON
// documents, one per intended post.
//
// A record is either a Draft (created by the content-planning sync, no hosted
// media yet) or Ready (media URL attached). Only Ready records take part in
// due checks and publishing.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reelcron/reelcron/internal/tz"
)

// Kind tags the two-phase lifecycle of a record.
type Kind uint8

const (
	// KindDraft has no hosted media and is never publishable.
	KindDraft Kind = iota
	// KindReady carries a media URL.
	KindReady
)

func (k Kind) String() string {
	switch k {
	case KindDraft:
		return "draft"
	case KindReady:
		return "ready"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

var (
	// ErrMalformed marks a record that cannot be decoded or violates an invariant.
	ErrMalformed = errors.New("malformed record")
	// ErrAlreadyPosted is returned when marking a record that is already posted.
	ErrAlreadyPosted = errors.New("record already posted")
	// ErrNotFound is returned for unknown record ids.
	ErrNotFound = errors.New("record not found")
	// ErrUnposted guards against deleting a ready record that was never posted.
	ErrUnposted = errors.New("refusing to delete unposted record")
	// ErrLocked is returned when another publish sweep holds the store lock.
	ErrLocked = errors.New("record store is locked by another sweep")
)

// JSON keys of the record document.
const (
	keyVideoURL       = "video_url"
	keyCaption        = "caption"
	keyScheduledTime  = "scheduled_time"
	keyCoverURL       = "cover_url"
	keyLocationID     = "location_id"
	keyPosted         = "posted"
	keyPostedAt       = "posted_at"
	keyNotionPageID   = "notion_page_id"
	keyLocalVideoPath = "local_video_path"
	keyTitle          = "title"
	keyStatus         = "status"
	keyGeneratedAt    = "generated_at"
)

// Provenance describes where a draft came from.
type Provenance struct {
	NotionPageID   string
	LocalVideoPath string
	Title          string
	Status         string
	GeneratedAt    string
}

// Record is one decoded post record.
type Record struct {
	// ID is the file name inside the store directory.
	ID string

	MediaURL   string
	Caption    string
	CoverURL   string
	LocationID string

	ScheduledAt time.Time
	Posted      bool
	PostedAt    time.Time

	Provenance Provenance

	kind         Kind
	scheduledRaw string
	extra        map[string]json.RawMessage
}

// NewReady builds a ready record scheduled at the given instant.
func NewReady(mediaURL, caption string, scheduledAt time.Time, zone tz.Zone) *Record {
	return &Record{
		MediaURL:     mediaURL,
		Caption:      caption,
		ScheduledAt:  zone.In(scheduledAt),
		kind:         KindReady,
		scheduledRaw: zone.Format(scheduledAt),
	}
}

// NewDraft builds a draft record awaiting media.
func NewDraft(caption string, scheduledAt time.Time, zone tz.Zone, p Provenance) *Record {
	return &Record{
		Caption:      caption,
		ScheduledAt:  zone.In(scheduledAt),
		Provenance:   p,
		kind:         KindDraft,
		scheduledRaw: zone.Format(scheduledAt),
	}
}

// Kind reports whether the record is a draft or ready.
func (r *Record) Kind() Kind {
	return r.kind
}

// Pending reports a ready record that has not been posted yet.
func (r *Record) Pending() bool {
	return r.kind == KindReady && !r.Posted
}

// ScheduledRaw returns scheduled_time exactly as stored.
func (r *Record) ScheduledRaw() string {
	return r.scheduledRaw
}

type document struct {
	VideoURL       *string `json:"video_url"`
	Caption        *string `json:"caption"`
	ScheduledTime  *string `json:"scheduled_time"`
	CoverURL       *string `json:"cover_url"`
	LocationID     *string `json:"location_id"`
	Posted         *bool   `json:"posted"`
	PostedAt       *string `json:"posted_at"`
	NotionPageID   *string `json:"notion_page_id"`
	LocalVideoPath *string `json:"local_video_path"`
	Title          *string `json:"title"`
	Status         *string `json:"status"`
	GeneratedAt    *string `json:"generated_at"`
}

var knownKeys = map[string]bool{
	keyVideoURL: true, keyCaption: true, keyScheduledTime: true,
	keyCoverURL: true, keyLocationID: true, keyPosted: true, keyPostedAt: true,
	keyNotionPageID: true, keyLocalVideoPath: true, keyTitle: true,
	keyStatus: true, keyGeneratedAt: true,
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Decode parses a record document. Timestamps go through zone.Normalize.
func Decode(id string, data []byte, zone tz.Zone) (*Record, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("%s: %v", id, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("%s: %v", id, err)
	}

	r := &Record{
		ID:         id,
		MediaURL:   str(doc.VideoURL),
		Caption:    str(doc.Caption),
		CoverURL:   str(doc.CoverURL),
		LocationID: str(doc.LocationID),
		Provenance: Provenance{
			NotionPageID:   str(doc.NotionPageID),
			LocalVideoPath: str(doc.LocalVideoPath),
			Title:          str(doc.Title),
			Status:         str(doc.Status),
			GeneratedAt:    str(doc.GeneratedAt),
		},
		scheduledRaw: str(doc.ScheduledTime),
	}
	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if r.extra == nil {
			r.extra = make(map[string]json.RawMessage)
		}
		r.extra[k] = v
	}

	if r.MediaURL != "" {
		r.kind = KindReady
	}

	if r.scheduledRaw == "" {
		return nil, malformed("%s: missing %s", id, keyScheduledTime)
	}
	at, err := zone.Normalize(r.scheduledRaw)
	if err != nil {
		return nil, malformed("%s: %s: %v", id, keyScheduledTime, err)
	}
	r.ScheduledAt = at

	if doc.Posted != nil {
		r.Posted = *doc.Posted
	}
	postedAt := str(doc.PostedAt)
	switch {
	case r.Posted && postedAt == "":
		return nil, malformed("%s: posted without %s", id, keyPostedAt)
	case !r.Posted && postedAt != "":
		return nil, malformed("%s: %s set on unposted record", id, keyPostedAt)
	case r.Posted:
		if r.PostedAt, err = zone.Normalize(postedAt); err != nil {
			return nil, malformed("%s: %s: %v", id, keyPostedAt, err)
		}
	}
	if r.Posted && r.kind == KindDraft {
		return nil, malformed("%s: posted record without %s", id, keyVideoURL)
	}
	return r, nil
}

// Encode renders the record as an indented JSON document. Keys that the
// decoder did not recognise are written back unchanged.
func (r *Record) Encode(zone tz.Zone) ([]byte, error) {
	out := make(map[string]interface{}, len(r.extra)+12)
	for k, v := range r.extra {
		out[k] = v
	}
	out[keyCaption] = r.Caption
	out[keyScheduledTime] = r.scheduledRaw
	if r.scheduledRaw == "" {
		out[keyScheduledTime] = zone.Format(r.ScheduledAt)
	}
	out[keyPosted] = r.Posted
	if r.Posted {
		out[keyPostedAt] = zone.Format(r.PostedAt)
	}

	switch r.kind {
	case KindReady:
		out[keyVideoURL] = r.MediaURL
		out[keyCoverURL] = nullable(r.CoverURL)
		out[keyLocationID] = nullable(r.LocationID)
	case KindDraft:
		out[keyVideoURL] = nil
	}
	// provenance survives promotion and MarkPosted whatever the kind
	p := r.Provenance
	setIf(out, keyNotionPageID, p.NotionPageID)
	setIf(out, keyLocalVideoPath, p.LocalVideoPath)
	setIf(out, keyTitle, p.Title)
	setIf(out, keyStatus, p.Status)
	setIf(out, keyGeneratedAt, p.GeneratedAt)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func setIf(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}
