package aiservice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

const maxThumbnailBytes = 5 << 20

var youtubeRegex = regexp.MustCompile(
	`(https?://)?(www\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/(watch\?v=|embed/|v/|.+\?v=)?([^&=%\?]{11})`,
)

// thumbnailBaseURL is swapped out in tests.
var thumbnailBaseURL = "https://img.youtube.com/vi"

// youtubeVideoID returns the 11-character video id of the first YouTube link in text.
func youtubeVideoID(text string) (string, bool) {
	match := youtubeRegex.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[6], true
}

// fetchYouTubeThumbnail downloads the high-resolution thumbnail of a linked video,
// falling back to the default one. It returns nil bytes when text has no link.
func (c *Client) fetchYouTubeThumbnail(ctx context.Context, text string) ([]byte, error) {
	videoID, ok := youtubeVideoID(text)
	if !ok {
		return nil, nil
	}

	var lastErr error
	for _, name := range []string{"maxresdefault.jpg", "0.jpg"} {
		data, err := c.download(ctx, fmt.Sprintf("%s/%s/%s", thumbnailBaseURL, videoID, name))
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
}
