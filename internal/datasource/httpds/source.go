package httpds

import (
	"context"
	"io"
)

// Source streams one URL. It satisfies datasource.Source.
type Source struct {
	client *Client
	url    string
}

// NewSource binds url to client. A nil client gets NewClient(Config{}).
func NewSource(client *Client, url string) *Source {
	if client == nil {
		client = NewClient(Config{})
	}
	return &Source{client: client, url: url}
}

// URL returns the bound URL.
func (s *Source) URL() string { return s.url }

// Open issues the GET and returns the response body.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FetchFirstBytes returns at most n bytes from the start of the URL.
func (s *Source) FetchFirstBytes(ctx context.Context, n int) ([]byte, error) {
	return s.client.FetchFirstBytes(ctx, s.url, n)
}
