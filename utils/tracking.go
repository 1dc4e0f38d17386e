package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Tracking tokens are derived from the message ID so the tracking
// endpoints can recompute and verify them without extra state.

// TrackingToken returns the verification token for a message.
func TrackingToken(messageID string) string {
	hash := sha256.Sum256([]byte("linkreach-track:" + messageID))
	return base64.URLEncoding.EncodeToString(hash[:])[:20]
}

// VerifyTrackingToken reports whether token belongs to messageID.
func VerifyTrackingToken(messageID, token string) bool {
	return TrackingToken(messageID) == token
}

// GenerateTrackingPixelURL generates a tracking pixel URL for email opens
func GenerateTrackingPixelURL(baseURL, messageID string) string {
	return fmt.Sprintf("%s/track/open/%s/%s", baseURL, messageID, TrackingToken(messageID))
}

// GenerateClickTrackURL generates a tracked URL for links
func GenerateClickTrackURL(baseURL, messageID, originalURL string) string {
	encodedURL := url.QueryEscape(originalURL)
	return fmt.Sprintf("%s/track/click/%s/%s?url=%s", baseURL, messageID, TrackingToken(messageID), encodedURL)
}

// InjectTracking adds an open pixel and rewrites links for click
// tracking. Plain-text bodies get no pixel markup appended.
func InjectTracking(htmlContent, baseURL, messageID string) string {
	modified := injectClickTracking(htmlContent, baseURL, messageID)
	if !strings.Contains(modified, "<") {
		return modified
	}
	pixelURL := GenerateTrackingPixelURL(baseURL, messageID)
	trackingPixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`, pixelURL)
	return modified + trackingPixel
}

func injectClickTracking(html, baseURL, messageID string) string {
	startTag := "<a href=\""
	endTag := "\""
	offset := 0

	for {
		startIdx := strings.Index(html[offset:], startTag)
		if startIdx == -1 {
			break
		}
		startIdx += offset + len(startTag)

		endIdx := strings.Index(html[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		endIdx += startIdx

		originalURL := html[startIdx:endIdx]
		trackedURL := GenerateClickTrackURL(baseURL, messageID, originalURL)

		html = html[:startIdx] + trackedURL + html[endIdx:]
		offset = startIdx + len(trackedURL)
	}

	return html
}
