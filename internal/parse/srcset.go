package parse

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const uploadPrefix = "/media/upload/"

// bestImageSource picks the densest candidate an img element offers. The wiki
// publishes a 1x rendition in src and optional 1.5x and 2x renditions in
// srcset; the densest one scales best on retina screens. In high quality mode
// thumbnail URLs are rewritten to the originals they were derived from.
func bestImageSource(img *goquery.Selection, base *url.URL, highQuality bool) (*url.URL, bool) {
	candidates := make(map[string]string)
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		candidates["1x"] = strings.TrimSpace(src)
	}
	if srcset, ok := img.Attr("srcset"); ok {
		for _, entry := range strings.Split(srcset, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			src, density := entry, "1x"
			if i := strings.LastIndexAny(entry, " \t"); i >= 0 {
				src = strings.TrimSpace(entry[:i])
				density = strings.TrimSpace(entry[i+1:])
			}
			if src != "" {
				candidates[density] = src
			}
		}
	}

	var chosen string
	for _, density := range []string{"2x", "1.5x", "1x"} {
		if src, ok := candidates[density]; ok {
			chosen = src
			break
		}
	}
	if chosen == "" {
		return nil, false
	}
	ref, err := url.Parse(chosen)
	if err != nil {
		return nil, false
	}
	resolved := base.ResolveReference(ref)
	if highQuality {
		resolved = thumbOriginURL(resolved)
	}
	return resolved, true
}

// thumbOriginURL maps a thumbnail URL back to the original upload it was
// scaled from. Thumbnails live under /media/upload/thumb/<a>/<b>/<name>/...
// with the original at /media/upload/<a>/<b>/<name>. URLs that do not match
// that shape are returned unchanged.
func thumbOriginURL(u *url.URL) *url.URL {
	rest, ok := strings.CutPrefix(u.Path, uploadPrefix+"thumb/")
	if !ok {
		return u
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 3 {
		return u
	}
	origin := *u
	origin.Path = uploadPrefix + strings.Join(parts[:3], "/")
	origin.RawQuery = ""
	return &origin
}

// deriveSourceKey turns an image URL into the stable name used for cache
// artifacts and output files. The hashed shard directories in the upload path
// become a suffix so that distinct uploads with the same file name cannot
// collide: /media/upload/a/b/name.png yields key "name-b-a" and ext "png".
func deriveSourceKey(u *url.URL) (key, ext string, err error) {
	path := strings.Trim(strings.TrimPrefix(u.Path, uploadPrefix), "/")
	if path == "" {
		return "", "", fmt.Errorf("image URL %q has an empty path", u)
	}
	stem, ext, ok := cutLast(path, ".")
	if !ok || ext == "" || strings.Contains(ext, "/") {
		return "", "", fmt.Errorf("image URL %q has no file extension", u)
	}
	parts := strings.Split(stem, "/")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "-"), strings.ToLower(ext), nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
