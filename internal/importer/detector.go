package importer

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

type feedKind int

const (
	kindRSS feedKind = iota + 1
	kindAtom
)

// feedLink はHTMLの <link rel="alternate"> から見つかったフィードの候補。
type feedLink struct {
	URL  string
	Kind feedKind
}

// sniffSize はXML本文がフィードかどうかを判定する際に調べる先頭バイト数。
const sniffSize = 4096

// isFeedResponse はレスポンスがRSS/Atomフィードそのものかを判定する。
// 汎用のXML Content-Typeの場合はルート要素で判断する。
func isFeedResponse(contentType string, body []byte) bool {
	switch mediaType(contentType) {
	case "application/rss+xml", "application/atom+xml", "application/rdf+xml":
		return true
	case "text/xml", "application/xml", "":
		return looksLikeFeed(body)
	default:
		return false
	}
}

func isHTMLResponse(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}

func looksLikeFeed(body []byte) bool {
	if len(body) > sniffSize {
		body = body[:sniffSize]
	}
	head := strings.ToLower(string(body))
	if strings.Contains(head, "<rss") || strings.Contains(head, "<rdf:rdf") {
		return true
	}
	return strings.Contains(head, "<feed") && strings.Contains(head, "http://www.w3.org/2005/atom")
}

// findFeedLinks は <head> 内の RSS/Atom 代替リンクを出現順に返す。
// 相対URLは base を基準に解決する。
func findFeedLinks(body []byte, base *url.URL) []feedLink {
	var links []feedLink

	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return links
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "body" {
				return links
			}
			if string(name) != "link" || !hasAttr {
				continue
			}

			var rel, typ, href string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					typ = strings.ToLower(string(val))
				case "href":
					href = strings.TrimSpace(string(val))
				}
			}
			if !hasRel(rel, "alternate") || href == "" {
				continue
			}

			var kind feedKind
			switch typ {
			case "application/rss+xml":
				kind = kindRSS
			case "application/atom+xml":
				kind = kindAtom
			default:
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, feedLink{URL: base.ResolveReference(ref).String(), Kind: kind})
		}
	}
}

func hasRel(rel, want string) bool {
	for _, r := range strings.Fields(rel) {
		if r == want {
			return true
		}
	}
	return false
}

// bestFeedLink はページと同じホストのフィードを優先し、同条件なら RSS、次に出現順で選ぶ。
// 講座フィードはエンクロージャ画像を持つ RSS で配信されることが多い。
func bestFeedLink(links []feedLink, page *url.URL) (feedLink, bool) {
	if len(links) == 0 {
		return feedLink{}, false
	}

	host := strings.ToLower(page.Hostname())
	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if u, err := url.Parse(l.URL); err == nil && strings.ToLower(u.Hostname()) == host {
			score += 10
		}
		if l.Kind == kindRSS {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best], true
}
