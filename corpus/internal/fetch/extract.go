package fetch

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extract parses HTML and produces a Page with cleaned text, resolved
// links and images, headings, and meta tags. pageURL is the base for
// resolving relative URLs.
func Extract(body []byte, pageURL string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	// Links and images are harvested before pruning: the frontier needs
	// every anchor, including the ones living in nav bars and footers.
	page := &Page{
		Title:    findTitle(doc),
		Metadata: findMeta(doc),
		Links:    collectRefs(doc, base, atom.A, "href"),
		Images:   collectRefs(doc, base, atom.Img, "src"),
	}

	pruneBoilerplate(doc)

	page.Headings = collectHeadings(doc)

	content := findContentRoot(doc)
	page.Content = collapseWhitespace(collectText(content))
	page.WordCount = len(strings.Fields(page.Content))

	return page, nil
}

// boilerplateMarkers are class/id fragments that flag navigation chrome,
// ads, and other non-content containers.
var boilerplateMarkers = []string{
	"sidebar", "menu", "advert", "banner", "cookie", "promo",
	"breadcrumb", "pagination", "share", "comment",
}

// pruneBoilerplate removes script/style/nav-style elements and containers
// whose class or id marks them as chrome, in place.
func pruneBoilerplate(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if isBoilerplate(c) {
			n.RemoveChild(c)
			continue
		}
		pruneBoilerplate(c)
	}
}

func isBoilerplate(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Footer,
		atom.Aside, atom.Header, atom.Form, atom.Iframe, atom.Svg:
		return true
	}
	marker := strings.ToLower(attr(n, "class") + " " + attr(n, "id"))
	if marker == " " {
		return false
	}
	for _, m := range boilerplateMarkers {
		if strings.Contains(marker, m) {
			return true
		}
	}
	// "ad"/"ads" need word-level matching; substring would kill "header".
	for _, field := range strings.FieldsFunc(marker, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}) {
		if field == "ad" || field == "ads" {
			return true
		}
	}
	return false
}

// findContentRoot locates the main content container: semantic landmarks
// first (main, article, [role=main]), then common content ids/classes,
// falling back to body.
func findContentRoot(doc *html.Node) *html.Node {
	if n := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Main || n.DataAtom == atom.Article ||
			attr(n, "role") == "main"
	}); n != nil {
		return n
	}
	if n := findFirst(doc, func(n *html.Node) bool {
		marker := strings.ToLower(attr(n, "class") + " " + attr(n, "id"))
		return strings.Contains(marker, "content") || strings.Contains(marker, "article-body")
	}); n != nil {
		return n
	}
	if body := findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.Body }); body != nil {
		return body
	}
	return doc
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findFirst(c, match); n != nil {
			return n
		}
	}
	return nil
}

func findTitle(doc *html.Node) string {
	n := findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.Title })
	if n == nil {
		return ""
	}
	return collapseWhitespace(collectText(n))
}

func findMeta(doc *html.Node) Metadata {
	var meta Metadata
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Meta {
			return
		}
		name := strings.ToLower(attr(n, "name"))
		content := strings.TrimSpace(attr(n, "content"))
		switch name {
		case "description":
			meta.Description = content
		case "keywords":
			meta.Keywords = content
		case "author":
			meta.Author = content
		}
	})
	return meta
}

func collectHeadings(doc *html.Node) Headings {
	var h Headings
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		text := collapseWhitespace(collectText(n))
		if text == "" {
			return
		}
		switch n.DataAtom {
		case atom.H1:
			h.H1 = append(h.H1, text)
		case atom.H2:
			h.H2 = append(h.H2, text)
		case atom.H3:
			h.H3 = append(h.H3, text)
		}
	})
	return h
}

// collectRefs gathers attribute URLs from elements of the given kind,
// resolved against base and deduplicated in document order.
func collectRefs(doc *html.Node, base *url.URL, kind atom.Atom, attrName string) []string {
	var result []string
	seen := make(map[string]bool)
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != kind {
			return
		}
		raw := strings.TrimSpace(attr(n, attrName))
		if raw == "" || strings.HasPrefix(raw, "#") ||
			strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "mailto:") ||
			strings.HasPrefix(raw, "tel:") || strings.HasPrefix(raw, "data:") {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		s := abs.String()
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	})
	return result
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collectText gathers the visible text of a subtree, inserting spaces at
// element boundaries so adjacent blocks don't run together.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
		if n.Type == html.ElementNode {
			sb.WriteByte(' ')
		}
	}
	rec(n)
	return sb.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
