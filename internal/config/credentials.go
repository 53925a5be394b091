// Package config resolves the credentials of the external services.
//
// A value is read from the environment first (a .env file is loaded into
// the environment at startup) and then from the OS keyring under the
// "reelcron" service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

// Service is the keyring service holding reelcron credentials.
const Service = "reelcron"

// Credential names.
const (
	InstagramAccessToken = "INSTAGRAM_ACCESS_TOKEN"
	InstagramAccountID   = "INSTAGRAM_BUSINESS_ACCOUNT_ID"
	CloudinaryCloudName  = "CLOUDINARY_CLOUD_NAME"
	CloudinaryAPIKey     = "CLOUDINARY_API_KEY"
	CloudinaryAPISecret  = "CLOUDINARY_API_SECRET"
	NotionAPIToken       = "NOTION_API_TOKEN"
	NotionDatabaseID     = "NOTION_DATABASE_ID"
)

// Names lists every known credential.
var Names = []string{
	InstagramAccessToken, InstagramAccountID,
	CloudinaryCloudName, CloudinaryAPIKey, CloudinaryAPISecret,
	NotionAPIToken, NotionDatabaseID,
}

// ErrMissingCredential is returned when a required credential is not set.
var ErrMissingCredential = errors.New("missing credential")

var (
	keyringGet = keyring.Get
	getenv     = os.Getenv
)

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Lookup returns the value of a credential and where it came from
// ("env" or "keyring"). An unset credential returns "", "".
func Lookup(name string) (value, source string) {
	if v := strings.TrimSpace(getenv(name)); v != "" {
		return v, "env"
	}
	// not stored, or no keyring backend on this host
	v, err := keyringGet(Service, name)
	if err != nil || v == "" {
		return "", ""
	}
	return v, "keyring"
}

// require resolves every name, reporting all missing ones at once.
func require(names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	var missing []string
	for _, n := range names {
		v, _ := Lookup(n)
		if v == "" {
			missing = append(missing, n)
			continue
		}
		out[n] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return out, nil
}

// Instagram holds the Graph API credentials.
type Instagram struct {
	AccessToken string
	AccountID   string
}

// LoadInstagram resolves the Graph API credentials.
func LoadInstagram() (Instagram, error) {
	v, err := require(InstagramAccessToken, InstagramAccountID)
	if err != nil {
		return Instagram{}, err
	}
	return Instagram{AccessToken: v[InstagramAccessToken], AccountID: v[InstagramAccountID]}, nil
}

// Cloudinary holds the media host credentials.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
}

// LoadCloudinary resolves the media host credentials.
func LoadCloudinary() (Cloudinary, error) {
	v, err := require(CloudinaryCloudName, CloudinaryAPIKey, CloudinaryAPISecret)
	if err != nil {
		return Cloudinary{}, err
	}
	return Cloudinary{
		CloudName: v[CloudinaryCloudName],
		APIKey:    v[CloudinaryAPIKey],
		APISecret: v[CloudinaryAPISecret],
	}, nil
}

// Notion holds the planning database credentials.
type Notion struct {
	Token      string
	DatabaseID string
}

// LoadNotion resolves the planning database credentials.
func LoadNotion() (Notion, error) {
	v, err := require(NotionAPIToken, NotionDatabaseID)
	if err != nil {
		return Notion{}, err
	}
	return Notion{Token: v[NotionAPIToken], DatabaseID: v[NotionDatabaseID]}, nil
}
