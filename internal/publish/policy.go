package publish

import (
	"errors"
	"net/http"

	"github.com/reelcron/reelcron/internal/graph"
)

// ResponsePolicy decides whether a failed publish call published the media
// anyway. Accept returns the media id to record when it did.
type ResponsePolicy interface {
	Accept(err error, containerID string) (mediaID string, ok bool)
}

// FalseFatalPolicy accepts one specific error response that the Graph API
// has been observed to return for reels that did go live. The container id
// stands in for the unknown media id.
//
// The response is undocumented. Accepted posts are logged as warnings so
// they can be checked by hand; revalidate against the live API when the
// Graph API version changes.
type FalseFatalPolicy struct {
	StatusCode int
	Subcode    int
	Message    string
}

// DefaultPolicy returns the policy for HTTP 400, subcode 2207032, "Fatal".
func DefaultPolicy() FalseFatalPolicy {
	return FalseFatalPolicy{StatusCode: http.StatusBadRequest, Subcode: 2207032, Message: "Fatal"}
}

func (p FalseFatalPolicy) Accept(err error, containerID string) (string, bool) {
	var apiErr *graph.APIError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	if apiErr.StatusCode != p.StatusCode || apiErr.Subcode != p.Subcode || apiErr.Message != p.Message {
		return "", false
	}
	return containerID, true
}

// StrictPolicy treats every publish error as a failure.
type StrictPolicy struct{}

func (StrictPolicy) Accept(error, string) (string, bool) { return "", false }
