// Package media stores reel videos on Cloudinary.
package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/reelcron/reelcron/pkg/logger"
)

// ErrForeignURL is returned for media URLs that are not Cloudinary assets.
var ErrForeignURL = errors.New("not a cloudinary url")

// Asset is an uploaded video.
type Asset struct {
	PublicID string
	URL      string
	Bytes    int
}

// backend is the subset of the Cloudinary SDK used here.
type backend interface {
	upload(ctx context.Context, file, publicID string) (Asset, error)
	destroy(ctx context.Context, publicID string) (string, error)
}

// Cloudinary uploads and deletes videos.
type Cloudinary struct {
	b   backend
	log logger.Logger
}

// NewCloudinary connects to the given cloud.
func NewCloudinary(cloudName, apiKey, apiSecret string, l logger.Logger) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Cloudinary{b: sdk{cld}, log: l}, nil
}

// Upload sends a local video, replacing any asset with the same public id.
// An empty publicID uses the file name without extension.
func (c *Cloudinary) Upload(ctx context.Context, file, publicID string) (Asset, error) {
	if publicID == "" {
		publicID = strings.TrimSuffix(path.Base(file), path.Ext(file))
	}
	c.log.Info("Uploading %s to Cloudinary as %s", file, publicID)
	a, err := c.b.upload(ctx, file, publicID)
	if err != nil {
		return Asset{}, fmt.Errorf("upload %s: %w", file, err)
	}
	c.log.Info("Uploaded %s", a.URL)
	return a, nil
}

// Owns reports whether url points at a Cloudinary asset.
func (c *Cloudinary) Owns(url string) bool {
	return strings.Contains(url, "cloudinary.com")
}

// Delete removes the video behind a Cloudinary URL. An asset that is
// already gone counts as deleted.
func (c *Cloudinary) Delete(ctx context.Context, url string) error {
	id, ok := PublicIDFromURL(url)
	if !ok {
		return fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	state, err := c.b.destroy(ctx, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	switch state {
	case "deleted":
		return nil
	case "not_found":
		c.log.Warning("Media %s was already deleted", id)
		return nil
	default:
		return fmt.Errorf("delete %s: unexpected state %q", id, state)
	}
}

var publicIDPattern = regexp.MustCompile(`/v\d+/([^/.]+)(?:\.[^/]*)?$`)

// PublicIDFromURL extracts the public id of a Cloudinary delivery URL, e.g.
// https://res.cloudinary.com/demo/video/upload/v1753525076/20250802-meme-jet.mp4
// yields 20250802-meme-jet.
func PublicIDFromURL(url string) (string, bool) {
	if url == "" || !strings.Contains(url, "cloudinary.com") {
		return "", false
	}
	if m := publicIDPattern.FindStringSubmatch(url); m != nil {
		return m[1], true
	}
	name := url[strings.LastIndex(url, "/")+1:]
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return name, name != ""
}

type sdk struct {
	cld *cloudinary.Cloudinary
}

func (s sdk) upload(ctx context.Context, file, publicID string) (Asset, error) {
	res, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: "video",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return Asset{}, err
	}
	if res.Error.Message != "" {
		return Asset{}, errors.New(res.Error.Message)
	}
	return Asset{PublicID: res.PublicID, URL: res.SecureURL, Bytes: res.Bytes}, nil
}

func (s sdk) destroy(ctx context.Context, publicID string) (string, error) {
	res, err := s.cld.Admin.DeleteAssets(ctx, admin.DeleteAssetsParams{
		PublicIDs: []string{publicID},
		AssetType: api.Video,
	})
	if err != nil {
		return "", err
	}
	if res.Error.Message != "" {
		return "", errors.New(res.Error.Message)
	}
	return res.Deleted[publicID], nil
}
