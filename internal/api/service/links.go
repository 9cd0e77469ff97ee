package service

import (
	"net/url"
	"strconv"
	"time"
)

const amzDateLayout = "20060102T150405Z"

// linkExpiry reads the expiry embedded in a signed blob url. Two schemes are
// understood: an "ex" query parameter holding hex unix seconds, and S3 presigned
// urls carrying X-Amz-Date plus X-Amz-Expires.
func linkExpiry(rawURL string) (time.Time, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return time.Time{}, false
	}
	q := u.Query()

	if ex := q.Get("ex"); ex != "" {
		secs, err := strconv.ParseInt(ex, 16, 64)
		if err == nil {
			return time.Unix(secs, 0), true
		}
	}

	if date, expires := q.Get("X-Amz-Date"), q.Get("X-Amz-Expires"); date != "" && expires != "" {
		signedAt, err := time.Parse(amzDateLayout, date)
		if err != nil {
			return time.Time{}, false
		}
		secs, err := strconv.Atoi(expires)
		if err != nil {
			return time.Time{}, false
		}
		return signedAt.Add(time.Duration(secs) * time.Second), true
	}

	return time.Time{}, false
}

// linkNeedsRefresh reports whether rawURL expires within margin of now.
// Urls without an embedded expiry are treated as live; an empty url always needs one.
func linkNeedsRefresh(rawURL string, now time.Time, margin time.Duration) bool {
	if rawURL == "" {
		return true
	}
	expiry, ok := linkExpiry(rawURL)
	if !ok {
		return false
	}
	return now.After(expiry.Add(-margin))
}
