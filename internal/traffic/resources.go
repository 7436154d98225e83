package traffic

import (
	"io"
	"math/rand/v2"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/narvanalabs/mocktraffic/internal/models"
)

var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif"}

// ExtractResources returns the absolute URLs of stylesheet links ending in
// .css and images ending in .png, .jpg, .jpeg or .gif, in document order.
// Relative references resolve against page, or against the first <base href>.
func ExtractResources(page *url.URL, body io.Reader) ([]string, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	base := page
	var refs []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Base:
				if href, ok := attr(n, "href"); ok && base == page {
					if u, err := page.Parse(href); err == nil {
						base = u
					}
				}
			case atom.Link:
				if href, ok := attr(n, "href"); ok && hasSuffixFold(href, ".css") {
					refs = append(refs, href)
				}
			case atom.Img:
				if src, ok := attr(n, "src"); ok && hasAnySuffixFold(src, imageSuffixes) {
					refs = append(refs, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		u, err := base.Parse(ref)
		if err != nil {
			continue
		}
		out = append(out, u.String())
	}
	return out, nil
}

// SelectResources shuffles candidates and keeps at most limit that are https
// and not blacklisted by profile.
func SelectResources(candidates []string, profile *models.Profile, rng *rand.Rand, limit int) []string {
	shuffled := append([]string(nil), candidates...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	selected := make([]string, 0, min(limit, len(shuffled)))
	for _, u := range shuffled {
		if len(selected) >= limit {
			break
		}
		if strings.HasPrefix(u, "https://") && !profile.IsBlacklisted(u) {
			selected = append(selected, u)
		}
	}
	return selected
}

// acceptFor returns the Accept header used when fetching resource u.
func acceptFor(u string) string {
	if strings.HasSuffix(u, ".css") {
		return "text/css"
	}
	return "image/*"
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			v := strings.TrimSpace(a.Val)
			return v, v != ""
		}
	}
	return "", false
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func hasAnySuffixFold(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if hasSuffixFold(s, suffix) {
			return true
		}
	}
	return false
}
