package rewrite

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"

	"mirror-proxy-go/internal/model"
)

// urlAttrs names, per tag, the attribute whose value is rewritten when it
// starts with the upstream origin.
var urlAttrs = map[string]string{
	"a":      "href",
	"img":    "src",
	"link":   "href",
	"script": "src",
	"form":   "action",
	"iframe": "src",
	"source": "src",
	"object": "data",
	"area":   "href",
	"base":   "href",
}

// RewriteHTML performs a single forward token pass over an HTML document,
// replacing the upstream origin prefix with the proxy origin in the known
// URL attributes. Protocol-relative and relative URLs are left alone: only
// exact absolute-origin matches are rewritten. Style attributes containing
// url() get whole-text origin replacement. Unmodified tokens are emitted
// from the tokenizer's raw bytes, so the rest of the document is preserved
// verbatim.
func RewriteHTML(body []byte, rw model.RewriteContext) ([]byte, error) {
	z := html.NewTokenizer(bytes.NewReader(body))
	var out bytes.Buffer

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return out.Bytes(), nil
			}
			return nil, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := z.Raw()
			tok := z.Token()
			if rewriteTagAttrs(&tok, rw) {
				out.WriteString(tok.String())
			} else {
				out.Write(raw)
			}

		default:
			out.Write(z.Raw())
		}
	}
}

// rewriteTagAttrs mutates a tag token's attributes in place and reports
// whether anything changed.
func rewriteTagAttrs(tok *html.Token, rw model.RewriteContext) bool {
	urlAttr := urlAttrs[tok.Data]
	changed := false

	for i, a := range tok.Attr {
		if a.Key == urlAttr && strings.HasPrefix(a.Val, rw.UpstreamOrigin) {
			tok.Attr[i].Val = rw.ProxyOrigin + a.Val[len(rw.UpstreamOrigin):]
			changed = true
			continue
		}
		if a.Key == "style" && strings.Contains(a.Val, "url(") {
			if v := strings.ReplaceAll(a.Val, rw.UpstreamOrigin, rw.ProxyOrigin); v != a.Val {
				tok.Attr[i].Val = v
				changed = true
			}
		}
	}

	return changed
}
