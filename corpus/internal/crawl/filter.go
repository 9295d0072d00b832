package crawl

import (
	"net/url"
	"path"
	"strings"
)

// staticExtensions are asset suffixes the frontier never fetches as pages.
var staticExtensions = map[string]bool{
	".css": true, ".js": true, ".mjs": true, ".json": true, ".xml": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".ico": true, ".webp": true, ".avif": true, ".bmp": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".mp3": true, ".mp4": true, ".webm": true, ".avi": true, ".mov": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".exe": true, ".dmg": true, ".iso": true,
}

// Filter decides which discovered links enter the frontier.
type Filter struct {
	// Host restricts links to the start URL's host. Ignored when
	// FollowExternal is set.
	Host string
	// FollowExternal permits links to other hosts.
	FollowExternal bool
	// IncludePaths, when non-empty, admits only URLs whose path contains
	// one of these fragments. Include rules apply before exclude rules.
	IncludePaths []string
	// ExcludePaths rejects URLs whose path contains one of these
	// fragments.
	ExcludePaths []string
}

// NewFilter builds a Filter scoped to the start URL's host.
func NewFilter(startURL string, followExternal bool, include, exclude []string) (*Filter, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return nil, err
	}
	return &Filter{
		Host:           u.Host,
		FollowExternal: followExternal,
		IncludePaths:   include,
		ExcludePaths:   exclude,
	}, nil
}

// Allow reports whether a link may be crawled.
func (f *Filter) Allow(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !f.FollowExternal && !strings.EqualFold(u.Host, f.Host) {
		return false
	}
	if staticExtensions[strings.ToLower(path.Ext(u.Path))] {
		return false
	}
	if len(f.IncludePaths) > 0 {
		matched := false
		for _, p := range f.IncludePaths {
			if strings.Contains(u.Path, p) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, p := range f.ExcludePaths {
		if strings.Contains(u.Path, p) {
			return false
		}
	}
	return true
}
