package mediaqueue

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"gift-platform/internal/apperr"
)

var ErrInvalidMedia = apperr.New(apperr.CategoryValidation, "INVALID_MEDIA", "media url is not a playable video")

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoURL accepts the YouTube URL shapes donors paste and returns the
// video id with a canonical watch URL.
func ParseVideoURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", apperr.Wrap(ErrInvalidMedia, nil, "media url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", apperr.Wrap(ErrInvalidMedia, err, fmt.Sprintf("media url %q is malformed", raw))
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")
	var id string
	switch host {
	case "youtu.be":
		id = path
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if path == "watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range []string{"shorts/", "embed/", "live/", "v/"} {
			if strings.HasPrefix(path, prefix) {
				id = strings.TrimPrefix(path, prefix)
				break
			}
		}
	default:
		return "", "", apperr.Wrap(ErrInvalidMedia, nil, fmt.Sprintf("media host %q is not supported", host))
	}

	if !videoIDPattern.MatchString(id) {
		return "", "", apperr.Wrap(ErrInvalidMedia, nil, fmt.Sprintf("media url %q has no video id", raw))
	}
	return id, "https://www.youtube.com/watch?v=" + id, nil
}
