package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"safaridl/pkg/session"
	"safaridl/pkg/utils"
)

func testSafari(t *testing.T, handler http.Handler) (*Safari, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api := utils.NewAPI(session.Cookies{"sessionid": "test"}, "127.0.0.1")
	s := NewSafari(api, zap.NewNop())
	s.baseURL = srv.URL
	return s, srv
}

func TestSafari_GetBookInfo(t *testing.T) {
	s, _ := testSafari(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/book/9780000000001/", r.URL.Path)
		fmt.Fprint(w, `{
			"identifier": "9780000000001",
			"title": "Test Driven Development",
			"authors": [{"name": "Kent B."}],
			"isbn": "9780000000001",
			"publishers": [{"name": "Test Press"}],
			"rights": "All rights reserved.",
			"description": "A book.",
			"subjects": [{"name": "Software"}],
			"web_url": "https://www.safaribooksonline.com/library/view/tdd/9780000000001/"
		}`)
	}))

	info, err := s.GetBookInfo(context.Background(), "9780000000001")
	require.NoError(t, err)
	assert.Equal(t, "Test Driven Development", info.Title)
	assert.Equal(t, "Kent B.", info.AuthorNames())
	assert.Equal(t, "9780000000001", info.UID("9780000000001"))
}

func TestSafari_GetBookInfo_OutOfSession(t *testing.T) {
	s, _ := testSafari(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"detail": "Authentication credentials were not provided."}`)
	}))

	_, err := s.GetBookInfo(context.Background(), "123")
	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Contains(t, sessErr.Detail, "Authentication credentials")
}

func TestSafari_GetBookInfo_NotFound(t *testing.T) {
	s, _ := testSafari(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"detail": "Not found."}`)
	}))

	_, err := s.GetBookInfo(context.Background(), "123")
	var retErr *RetrievalError
	require.ErrorAs(t, err, &retErr)
	assert.Contains(t, retErr.Detail, "not present")
}

func TestSafari_GetChapters_PaginationMerge(t *testing.T) {
	s, _ := testSafari(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.RawQuery {
		case "":
			fmt.Fprint(w, `{
				"results": [
					{"filename": "a.html", "title": "A"},
					{"filename": "b.html", "title": "B"}
				],
				"next": "/api/v1/book/42/chapter/?page=1"
			}`)
		case "page=1":
			fmt.Fprint(w, `{"results": [{"filename": "c.html", "title": "C"}], "next": null}`)
		default:
			t.Fatalf("unexpected query %q", r.URL.RawQuery)
		}
	}))

	chapters, err := s.GetChapters(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	assert.Equal(t, "a.html", chapters[0].Filename)
	assert.Equal(t, "b.html", chapters[1].Filename)
	assert.Equal(t, "c.html", chapters[2].Filename)
}

func TestSafari_GetChapters_CoverMovesToPageFront(t *testing.T) {
	s, _ := testSafari(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"results": [
				{"filename": "ch01.html", "title": "One"},
				{"filename": "cover.html", "title": "Cover"},
				{"filename": "ch02.html", "title": "Two"}
			],
			"next": null
		}`)
	}))

	chapters, err := s.GetChapters(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	assert.Equal(t, "cover.html", chapters[0].Filename)
	assert.Equal(t, "ch01.html", chapters[1].Filename)
	assert.Equal(t, "ch02.html", chapters[2].Filename)
}

func TestSafari_GetChapters_EmptyPageIsFatal(t *testing.T) {
	s, _ := testSafari(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [], "next": null}`)
	}))

	_, err := s.GetChapters(context.Background(), "42")
	var retErr *RetrievalError
	require.ErrorAs(t, err, &retErr)
}

func TestSafari_GetTOC(t *testing.T) {
	s, _ := testSafari(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/book/42/toc/", r.URL.Path)
		fmt.Fprint(w, `[
			{"id": "n1", "fragment": "", "label": "Part I", "href": "part1.html", "depth": 1,
			 "children": [
				{"id": "n2", "fragment": "s1", "label": "Chapter 1", "href": "ch01.html", "depth": 2, "children": []}
			 ]},
			{"id": "n3", "fragment": "", "label": "Part II", "href": "part2.html", "depth": 1, "children": []}
		]`)
	}))

	toc, err := s.GetTOC(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, toc, 2)
	assert.Equal(t, "Part I", toc[0].Label)
	require.Len(t, toc[0].Children, 1)
	assert.Equal(t, 2, toc[0].Children[0].Depth)
}

func TestSafari_GetTOC_SingleKeyPayload(t *testing.T) {
	s, _ := testSafari(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"detail": "expired"}`)
	}))

	_, err := s.GetTOC(context.Background(), "42")
	assert.True(t, errors.As(err, new(*SessionError)))
}
