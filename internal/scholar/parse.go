package scholar

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IsBlockPage reports whether body is a captcha or "unusual traffic"
// interstitial. Only markup is inspected: the captcha form ids, reCAPTCHA
// widgets and scripts, and forms posting to /sorry/. Page text is ignored
// so that titles mentioning captchas do not count.
func IsBlockPage(body []byte) bool {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return findFirst(doc, isBlockElement) != nil
}

func isBlockElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	id := attr(n, "id")
	if strings.HasPrefix(id, "gs_captcha") || id == "captcha-form" || id == "recaptcha" {
		return true
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == "g-recaptcha" {
			return true
		}
	}
	switch n.DataAtom {
	case atom.Form:
		return strings.Contains(attr(n, "action"), "/sorry/")
	case atom.Script, atom.Iframe:
		return strings.Contains(attr(n, "src"), "/recaptcha/")
	}
	return false
}

var citedByPattern = regexp.MustCompile(`\d+`)

// profilePage is one page of a profile's publication table.
type profilePage struct {
	Name string
	Refs []PubRef
}

// parseProfilePage extracts the author name and publication rows.
func parseProfilePage(body []byte) (*profilePage, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &profilePage{}
	if n := findFirst(doc, byID("gsc_prf_in")); n != nil {
		page.Name = nodeText(n)
	}
	if page.Name == "" && findFirst(doc, byID("gsc_a_b")) == nil {
		return nil, fmt.Errorf("no profile header or publication table")
	}

	for _, row := range findAll(doc, byClass(atom.Tr, "gsc_a_tr")) {
		link := findFirst(row, byClass(atom.A, "gsc_a_at"))
		if link == nil {
			continue // "There are no articles in this profile." placeholder row
		}

		ref := PubRef{
			Title: nodeText(link),
			ID:    citationKey(attr(link, "href")),
		}
		if ref.ID == "" {
			ref.ID = citationKey(attr(link, "data-href"))
		}

		grays := findAll(row, byClass(atom.Div, "gs_gray"))
		if len(grays) > 0 {
			ref.Authors = nodeText(grays[0])
		}
		if len(grays) > 1 {
			ref.Citation = nodeText(grays[1])
		}
		if y := findFirst(row, byClass(0, "gsc_a_h")); y != nil {
			ref.Year = nodeText(y)
		}
		if c := findFirst(row, byClass(atom.A, "gsc_a_ac")); c != nil {
			ref.Citations, _ = strconv.Atoi(nodeText(c))
		}
		page.Refs = append(page.Refs, ref)
	}

	return page, nil
}

// parseDetailPage extracts the labelled fields of a view_citation page.
func parseDetailPage(body []byte) (*Detail, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	titleNode := findFirst(doc, byID("gsc_oci_title"))
	if titleNode == nil {
		return nil, fmt.Errorf("no citation title block")
	}

	d := &Detail{Title: nodeText(titleNode)}
	if link := findFirst(titleNode, byClass(atom.A, "gsc_oci_title_link")); link != nil {
		d.Title = nodeText(link)
		d.PubURL = attr(link, "href")
	}

	for _, row := range findAll(doc, byClass(atom.Div, "gs_scl")) {
		field := findFirst(row, byClass(atom.Div, "gsc_oci_field"))
		value := findFirst(row, byClass(atom.Div, "gsc_oci_value"))
		if field == nil || value == nil {
			continue
		}
		v := nodeText(value)

		switch strings.ToLower(nodeText(field)) {
		case "authors", "inventors":
			d.Authors = joinAuthorList(v)
		case "publication date":
			d.Year = yearOf(v)
		case "journal":
			d.Journal = v
		case "conference":
			d.Conference = v
		case "book":
			d.Book = v
		case "source":
			d.Source = v
		case "volume":
			d.Volume = v
		case "issue":
			d.Issue = v
		case "pages":
			d.Pages = v
		case "publisher":
			d.Publisher = v
		case "total citations":
			if m := citedByPattern.FindString(v); m != "" {
				d.Citations, _ = strconv.Atoi(m)
			}
		}
	}

	return d, nil
}

// citationKey pulls citation_for_view out of a view_citation link.
func citationKey(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(html.UnescapeString(href))
	if err != nil {
		return ""
	}
	return u.Query().Get("citation_for_view")
}

// joinAuthorList turns Scholar's "A Smith, B Jones" into "A Smith and B Jones".
func joinAuthorList(v string) string {
	var names []string
	for _, n := range strings.Split(v, ",") {
		if n = strings.TrimSpace(n); n != "" && n != "..." {
			names = append(names, n)
		}
	}
	return strings.Join(names, " and ")
}

// yearOf returns the leading year of a "2021/3/14" style date.
func yearOf(date string) string {
	date = strings.TrimSpace(date)
	if i := strings.IndexByte(date, '/'); i >= 0 {
		return date[:i]
	}
	return date
}

type matcher func(*html.Node) bool

func byID(id string) matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == id
	}
}

// byClass matches elements carrying class; a zero tag matches any element.
func byClass(tag atom.Atom, class string) matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || (tag != 0 && n.DataAtom != tag) {
			return false
		}
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

func findFirst(n *html.Node, m matcher) *html.Node {
	if m(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, m); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, m matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if m(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText concatenates descendant text with whitespace collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
