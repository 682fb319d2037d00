package scholar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

const profileHTML = `<html><body>
<div id="gsc_prf_in">Jane A Doe</div>
<table><tbody id="gsc_a_b">
<tr class="gsc_a_tr">
  <td class="gsc_a_t">
    <a href="/citations?view_op=view_citation&amp;hl=en&amp;user=ABC&amp;citation_for_view=ABC:p1" class="gsc_a_at">Studying Things</a>
    <div class="gs_gray">JA Doe, B Roe</div>
    <div class="gs_gray">Journal of Examples 12, 1-10<span class="gs_oph">, 2023</span></div>
  </td>
  <td class="gsc_a_c"><a href="#" class="gsc_a_ac gs_ibl">42</a></td>
  <td class="gsc_a_y"><span class="gsc_a_h gsc_a_hc gs_ibl">2023</span></td>
</tr>
<tr class="gsc_a_tr">
  <td class="gsc_a_t">
    <a href="/citations?view_op=view_citation&amp;hl=en&amp;user=ABC&amp;citation_for_view=ABC:p2" class="gsc_a_at">A Preprint</a>
    <div class="gs_gray">JA Doe</div>
    <div class="gs_gray">arXiv preprint arXiv:2401.00001</div>
  </td>
  <td class="gsc_a_c"><a href="#" class="gsc_a_ac gs_ibl"></a></td>
  <td class="gsc_a_y"><span class="gsc_a_h gsc_a_hc gs_ibl"></span></td>
</tr>
</tbody></table>
</body></html>`

const detailHTML = `<html><body>
<div id="gsc_oci_title"><a class="gsc_oci_title_link" href="https://example.org/things">Studying Things</a></div>
<div id="gsc_oci_table">
  <div class="gs_scl"><div class="gsc_oci_field">Authors</div><div class="gsc_oci_value">Jane A Doe, Bob Roe</div></div>
  <div class="gs_scl"><div class="gsc_oci_field">Publication date</div><div class="gsc_oci_value">2023/4/1</div></div>
  <div class="gs_scl"><div class="gsc_oci_field">Journal</div><div class="gsc_oci_value">Journal of Examples</div></div>
  <div class="gs_scl"><div class="gsc_oci_field">Volume</div><div class="gsc_oci_value">12</div></div>
  <div class="gs_scl"><div class="gsc_oci_field">Pages</div><div class="gsc_oci_value">1-10</div></div>
  <div class="gs_scl"><div class="gsc_oci_field">Publisher</div><div class="gsc_oci_value">Example Press</div></div>
  <div class="gs_scl"><div class="gsc_oci_field">Total citations</div><div class="gsc_oci_value"><div><a href="#">Cited by 42</a></div><div id="gsc_oci_graph"><span>2023</span><span>2024</span></div></div></div>
</div>
</body></html>`

const captchaHTML = `<html><body><div id="gs_captcha_ccl">Please show you're not a robot</div></body></html>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRateLimit(0))
}

func TestClient_LookupAuthor(t *testing.T) {
	var gotUser string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.URL.Query().Get("user")
		if ua := r.Header.Get("User-Agent"); ua != UserAgent {
			t.Errorf("User-Agent = %q", ua)
		}
		fmt.Fprint(w, profileHTML)
	})

	refs, err := c.LookupAuthor(context.Background(), "ABC")
	if err != nil {
		t.Fatalf("LookupAuthor() error = %v", err)
	}
	if gotUser != "ABC" {
		t.Errorf("user param = %q, want ABC", gotUser)
	}
	if len(refs) != 2 {
		t.Fatalf("LookupAuthor() returned %d refs, want 2", len(refs))
	}

	want := PubRef{
		ID:        "ABC:p1",
		Title:     "Studying Things",
		Authors:   "JA Doe, B Roe",
		Citation:  "Journal of Examples 12, 1-10 , 2023",
		Year:      "2023",
		Citations: 42,
	}
	if refs[0] != want {
		t.Errorf("refs[0] = %+v, want %+v", refs[0], want)
	}
	if refs[1].ID != "ABC:p2" || refs[1].Year != "" || refs[1].Citations != 0 {
		t.Errorf("refs[1] = %+v", refs[1])
	}
}

func TestClient_LookupAuthor_Paginates(t *testing.T) {
	var starts []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("cstart")
		starts = append(starts, start)

		rows := PageSize
		if start != "0" {
			rows = 3
		}
		var b strings.Builder
		b.WriteString(`<html><body><div id="gsc_prf_in">X</div><table><tbody id="gsc_a_b">`)
		for i := 0; i < rows; i++ {
			fmt.Fprintf(&b, `<tr class="gsc_a_tr"><td><a class="gsc_a_at" href="/citations?citation_for_view=X:%s-%d">T</a></td></tr>`, start, i)
		}
		b.WriteString(`</tbody></table></body></html>`)
		fmt.Fprint(w, b.String())
	})

	refs, err := c.LookupAuthor(context.Background(), "X")
	if err != nil {
		t.Fatalf("LookupAuthor() error = %v", err)
	}
	if len(refs) != PageSize+3 {
		t.Errorf("LookupAuthor() returned %d refs, want %d", len(refs), PageSize+3)
	}
	if len(starts) != 2 || starts[1] != strconv.Itoa(PageSize) {
		t.Errorf("cstart sequence = %v", starts)
	}
	if refs[PageSize].ID != "X:100-0" {
		t.Errorf("first ref of page 2 = %q", refs[PageSize].ID)
	}
}

func TestClient_FillPublication(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("citation_for_view"); got != "ABC:p1" {
			t.Errorf("citation_for_view = %q", got)
		}
		fmt.Fprint(w, detailHTML)
	})

	d, err := c.FillPublication(context.Background(), PubRef{ID: "ABC:p1", Citation: "J Ex 12"})
	if err != nil {
		t.Fatalf("FillPublication() error = %v", err)
	}

	want := Detail{
		Title:     "Studying Things",
		Authors:   "Jane A Doe and Bob Roe",
		Journal:   "Journal of Examples",
		Citation:  "J Ex 12",
		Year:      "2023",
		Volume:    "12",
		Pages:     "1-10",
		Publisher: "Example Press",
		PubURL:    "https://example.org/things",
		Citations: 42,
	}
	if *d != want {
		t.Errorf("FillPublication() = %+v, want %+v", *d, want)
	}
	if d.Venue() != "Journal of Examples" {
		t.Errorf("Venue() = %q", d.Venue())
	}
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"too many requests", http.StatusTooManyRequests, "", KindRateLimited},
		{"unavailable", http.StatusServiceUnavailable, "", KindRateLimited},
		{"captcha page", http.StatusOK, captchaHTML, KindRateLimited},
		{"not found", http.StatusNotFound, "", KindNotFound},
		{"server error", http.StatusBadGateway, "", KindTransientNetwork},
		{"garbage page", http.StatusOK, "<html><body>hello</body></html>", KindMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := c.FillPublication(context.Background(), PubRef{ID: "X:1"})
			if err == nil {
				t.Fatal("FillPublication() error = nil")
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(WithBaseURL(url), WithRateLimit(0))
	_, err := c.LookupAuthor(context.Background(), "X")
	if KindOf(err) != KindTransientNetwork {
		t.Errorf("KindOf() = %v, want transient (err %v)", KindOf(err), err)
	}
	if !errors.Is(err, ErrNetworkError) {
		t.Errorf("errors.Is(err, ErrNetworkError) = false")
	}
}

func TestErrorPredicates(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindRateLimited, "op", 429, nil))
	if !IsRateLimited(err) || IsNotFound(err) {
		t.Errorf("predicates wrong for %v", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("errors.Is(err, ErrRateLimited) = false")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("KindOf(plain) should be unknown")
	}
	if KindOf(fmt.Errorf("x: %w", ErrNotFound)) != KindNotFound {
		t.Error("KindOf(sentinel) should map to its kind")
	}
}

func TestIsBlockPage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"scholar captcha form", captchaHTML, true},
		{"sorry interstitial", `<html><body><p>Our systems have detected unusual traffic</p><form id="captcha-form" action="index" method="post"></form></body></html>`, true},
		{"sorry form action", `<form action="https://www.google.com/sorry/index"><input name="q"></form>`, true},
		{"recaptcha widget", `<div class="g-recaptcha" data-sitekey="k"></div>`, true},
		{"recaptcha script", `<script src="https://www.google.com/recaptcha/api.js"></script>`, true},
		{"profile page", profileHTML, false},
		{"marker words in text only", `<p>Our systems have detected UNUSUAL TRAFFIC; reCAPTCHA says I'm not a robot</p>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBlockPage([]byte(tt.body)); got != tt.want {
				t.Errorf("IsBlockPage() = %v, want %v", got, tt.want)
			}
		})
	}
}

// captchaTitle is a real-looking title made of block-page wording.
const captchaTitle = "Breaking reCAPTCHA with deep learning: not a robot, just unusual traffic"

func TestClient_CaptchaWordsInTitles(t *testing.T) {
	profile := strings.Replace(profileHTML, "Studying Things", captchaTitle, 1)
	detail := strings.Replace(detailHTML, "Studying Things", captchaTitle, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("view_op") == "view_citation" {
			fmt.Fprint(w, detail)
			return
		}
		fmt.Fprint(w, profile)
	})

	refs, err := c.LookupAuthor(context.Background(), "ABC")
	if err != nil {
		t.Fatalf("LookupAuthor() error = %v (kind %v)", err, KindOf(err))
	}
	if len(refs) != 2 || refs[0].Title != captchaTitle {
		t.Fatalf("refs = %+v", refs)
	}

	d, err := c.FillPublication(context.Background(), refs[0])
	if err != nil {
		t.Fatalf("FillPublication() error = %v (kind %v)", err, KindOf(err))
	}
	if d.Title != captchaTitle {
		t.Errorf("Title = %q", d.Title)
	}
}

func TestDetailVenueFallback(t *testing.T) {
	d := Detail{Citation: "Some citation line"}
	if d.Venue() != "Some citation line" {
		t.Errorf("Venue() = %q", d.Venue())
	}
	d.Conference = "ICML"
	if d.Venue() != "ICML" {
		t.Errorf("Venue() = %q", d.Venue())
	}
}
