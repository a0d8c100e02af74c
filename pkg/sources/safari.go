package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"safaridl/pkg/utils"
)

const BaseURL = "https://www.safaribooksonline.com"

type Name struct {
	Name string `json:"name"`
}

type BookInfo struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Authors     []Name `json:"authors"`
	ISBN        string `json:"isbn"`
	Publishers  []Name `json:"publishers"`
	Rights      string `json:"rights"`
	Description string `json:"description"`
	Subjects    []Name `json:"subjects"`
	WebURL      string `json:"web_url"`
}

// AuthorNames joins the author list for display and for the NCX docAuthor.
func (b *BookInfo) AuthorNames() string {
	names := make([]string, len(b.Authors))
	for i, a := range b.Authors {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// UID is the package identifier: the ISBN when the service knows one,
// otherwise the book id.
func (b *BookInfo) UID(bookID string) string {
	if b.ISBN != "" {
		return b.ISBN
	}
	return bookID
}

type Chapter struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Fragment string `json:"fragment"`
	Href     string `json:"href"`
}

// IsCover reports whether the chapter record is the book cover page.
func (c Chapter) IsCover() bool {
	return strings.Contains(c.Filename, "cover.")
}

type TocNode struct {
	ID       string    `json:"id"`
	Fragment string    `json:"fragment"`
	Label    string    `json:"label"`
	Href     string    `json:"href"`
	Depth    int       `json:"depth"`
	Children []TocNode `json:"children"`
}

// Safari is the Safari Books Online client.
type Safari struct {
	api     *utils.API
	baseURL string
	log     *zap.Logger
}

func NewSafari(api *utils.API, log *zap.Logger) *Safari {
	return &Safari{api: api, baseURL: BaseURL, log: log}
}

func (s *Safari) apiURL(id, path string) string {
	return fmt.Sprintf("%s/api/v1/book/%s/", s.baseURL, id) + path
}

// checkPayload classifies an API response body before it is decoded into
// data. An object with exactly one top-level key is never data: it is either
// a "not found" detail or an out-of-session notice.
func checkPayload(op string, raw []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		// Arrays (the TOC) and other non-object payloads are left for the
		// caller to decode.
		return nil
	}
	if len(obj) != 1 {
		return nil
	}

	var detail string
	if d, ok := obj["detail"]; ok {
		_ = json.Unmarshal(d, &detail)
	}
	if strings.Contains(detail, "Not found") {
		return &RetrievalError{
			Op: op,
			Detail: "book's not present in Safari Books Online, the book identifier " +
				"are the digits that you can find in the URL",
		}
	}
	return &SessionError{Detail: detail}
}

func (s *Safari) GetBookInfo(ctx context.Context, id string) (*BookInfo, error) {
	raw, err := s.api.Get(ctx, s.apiURL(id, ""))
	if err != nil {
		return nil, &RetrievalError{Op: "book info", Detail: err.Error()}
	}
	if err := checkPayload("book info", raw); err != nil {
		return nil, err
	}

	var info BookInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, &RetrievalError{Op: "book info", Detail: err.Error()}
	}
	return &info, nil
}

type chapterPage struct {
	Results []Chapter `json:"results"`
	Next    *string   `json:"next"`
}

// GetChapters walks the paginated chapter manifest until the service stops
// advertising a next page. Within each page any cover record is moved to the
// front before the page is appended, so the overall order is "cover first,
// then the service's natural order".
func (s *Safari) GetChapters(ctx context.Context, id string) ([]Chapter, error) {
	var chapters []Chapter
	for page := 0; ; page++ {
		u := s.apiURL(id, "chapter/")
		if page > 0 {
			u += fmt.Sprintf("?page=%d", page)
		}

		raw, err := s.api.Get(ctx, u)
		if err != nil {
			return nil, &RetrievalError{Op: "chapters", Detail: err.Error()}
		}
		if err := checkPayload("chapters", raw); err != nil {
			return nil, err
		}

		var p chapterPage
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &RetrievalError{Op: "chapters", Detail: err.Error()}
		}
		if len(p.Results) == 0 {
			return nil, &RetrievalError{Op: "chapters", Detail: "unable to retrieve book chapters"}
		}

		chapters = append(chapters, coverFirst(p.Results)...)
		s.log.Debug("fetched chapter page",
			zap.Int("page", page), zap.Int("results", len(p.Results)))

		if p.Next == nil || *p.Next == "" {
			break
		}
	}
	return chapters, nil
}

// coverFirst reorders a single page of the manifest: cover records move to
// the front, both groups keep their relative order.
func coverFirst(page []Chapter) []Chapter {
	out := make([]Chapter, 0, len(page))
	for _, c := range page {
		if c.IsCover() {
			out = append(out, c)
		}
	}
	for _, c := range page {
		if !c.IsCover() {
			out = append(out, c)
		}
	}
	return out
}

func (s *Safari) GetTOC(ctx context.Context, id string) ([]TocNode, error) {
	raw, err := s.api.Get(ctx, s.apiURL(id, "toc/"))
	if err != nil {
		return nil, &RetrievalError{
			Op:     "toc",
			Detail: err.Error() + ", don't delete any files, just run the program again to complete the epub",
		}
	}
	if err := checkPayload("toc", raw); err != nil {
		return nil, err
	}

	var toc []TocNode
	if err := json.Unmarshal(raw, &toc); err != nil {
		return nil, &RetrievalError{Op: "toc", Detail: err.Error()}
	}
	return toc, nil
}
