// Package service maps the REST endpoints onto typed calls. Each method is a
// single client invocation; errors from the client are returned unchanged.
package service

import (
	"context"
	"net/url"
	"strconv"

	"github.com/nhle/taskpilot/internal/model"
)

// Requester is the subset of *api.Client the services use.
type Requester interface {
	Get(ctx context.Context, path string, result any) error
	Post(ctx context.Context, path string, body, result any) error
	Patch(ctx context.Context, path string, body, result any) error
	Delete(ctx context.Context, path string) error
}

func seg(id model.ID) string {
	return url.PathEscape(id.String())
}

func withQuery(path string, params map[string]int) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, strconv.Itoa(v))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
