package analyzer

import (
	"context"
	"fmt"
	"strings"
)

// Router dispatches on the URI scheme. A nil route makes that kind of
// source unsupported.
type Router struct {
	// Local handles plain paths and file:// URIs
	Local Analyzer
	// Remote handles http:// and https:// URLs
	Remote Analyzer
	// S3 handles s3://bucket/key
	S3 Analyzer
	// GCS handles gs://bucket/object
	GCS Analyzer
	// Shots handles local .json shots files
	Shots Analyzer
}

// Route returns the analyzer responsible for uri
func (r *Router) Route(uri string) (Analyzer, error) {
	var next Analyzer
	switch scheme := Scheme(uri); scheme {
	case "", "file":
		if strings.EqualFold(strings.TrimSpace(extOf(uri)), ".json") {
			next = r.Shots
		} else {
			next = r.Local
		}
	case "http", "https":
		next = r.Remote
	case "s3":
		next = r.S3
	case "gs":
		next = r.GCS
	}
	if next == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, uri)
	}
	return next, nil
}

// Analyze routes uri and analyzes it
func (r *Router) Analyze(ctx context.Context, uri string) (*Analysis, error) {
	next, err := r.Route(uri)
	if err != nil {
		return nil, err
	}
	return next.Analyze(ctx, uri)
}

func extOf(uri string) string {
	i := strings.LastIndexByte(uri, '.')
	if i < 0 || strings.ContainsAny(uri[i:], `/\`) {
		return ""
	}
	return uri[i:]
}
