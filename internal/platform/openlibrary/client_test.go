package openlibrary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBookByISBN(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/books", r.URL.Path)
		assert.Equal(t, "booklending-test", r.Header.Get("User-Agent"))

		if r.URL.Query().Get("bibkeys") == "ISBN:9780132350884" {
			_, _ = w.Write([]byte(`{"ISBN:9780132350884":{"title":"Clean Code","number_of_pages":464,
				"authors":[{"name":"Robert C. Martin"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("booklending-test", 100, 0, WithBaseURL(srv.URL))

	d, err := c.GetBookByISBN(context.Background(), "9780132350884")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Clean Code", d.Title)
	assert.Equal(t, 464, d.NumberOfPages)
	assert.Equal(t, "Robert C. Martin", d.AuthorNames())

	d, err = c.GetBookByISBN(context.Background(), "0000000000")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("booklending-test", 100, 2, WithBaseURL(srv.URL), WithBackoff(0))

	d, err := c.GetBookByISBN(context.Background(), "9780132350884")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("booklending-test", 100, 3, WithBaseURL(srv.URL), WithBackoff(0))

	_, err := c.GetBookByISBN(context.Background(), "9780132350884")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
