package analyzer

import (
	"context"
	"fmt"
	"sync"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"github.com/kikiluvv/cuepoint/internal/cues"
	"github.com/kikiluvv/cuepoint/internal/logging"
	"github.com/rs/zerolog"
)

// ShotAnnotator runs shot change detection on a gs:// object
type ShotAnnotator interface {
	AnnotateShots(ctx context.Context, uri string) (*videointelligencepb.AnnotateVideoResponse, error)
}

// VideoIntelligenceAnalyzer asks the Video Intelligence API for shot changes.
// The object is never downloaded, so there is no loudness trace.
type VideoIntelligenceAnalyzer struct {
	logger zerolog.Logger

	once      sync.Once
	annotator ShotAnnotator
	initErr   error
}

// NewVideoIntelligenceAnalyzer creates the analyzer. The API client is built
// on first use from application default credentials.
func NewVideoIntelligenceAnalyzer(logger zerolog.Logger) *VideoIntelligenceAnalyzer {
	return &VideoIntelligenceAnalyzer{
		logger: logging.WithComponent(logger, "videointelligence"),
	}
}

// WithAnnotator replaces the lazily built API client
func (a *VideoIntelligenceAnalyzer) WithAnnotator(annotator ShotAnnotator) *VideoIntelligenceAnalyzer {
	a.once.Do(func() {})
	a.annotator = annotator
	return a
}

func (a *VideoIntelligenceAnalyzer) getAnnotator(ctx context.Context) (ShotAnnotator, error) {
	a.once.Do(func() {
		client, err := videointelligence.NewClient(ctx)
		if err != nil {
			a.initErr = fmt.Errorf("create video intelligence client: %w", err)
			return
		}
		a.annotator = &videoClient{client: client}
	})
	return a.annotator, a.initErr
}

// Analyze detects the shots of a gs://bucket/object video
func (a *VideoIntelligenceAnalyzer) Analyze(ctx context.Context, uri string) (*Analysis, error) {
	if Scheme(uri) != "gs" {
		return nil, fmt.Errorf("%w: not a gs uri: %s", ErrUnsupportedSource, uri)
	}

	annotator, err := a.getAnnotator(ctx)
	if err != nil {
		return nil, err
	}

	a.logger.Info().Str("input", uri).Msg("requesting shot change detection")
	resp, err := annotator.AnnotateShots(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("annotate %s: %w", uri, err)
	}

	result, err := analysisFromAnnotations(resp)
	if err != nil {
		return nil, fmt.Errorf("annotate %s: %w", uri, err)
	}
	result.setMeta("source", uri)

	a.logger.Info().
		Str("input", uri).
		Int("shots", len(result.Segments)).
		Msg("shot change detection complete")
	return result, nil
}

// analysisFromAnnotations maps the shot annotations of the first result onto
// segments
func analysisFromAnnotations(resp *videointelligencepb.AnnotateVideoResponse) (*Analysis, error) {
	results := resp.GetAnnotationResults()
	if len(results) == 0 {
		return &Analysis{}, nil
	}
	if status := results[0].GetError(); status != nil {
		return nil, fmt.Errorf("video intelligence: %s", status.GetMessage())
	}

	shots := results[0].GetShotAnnotations()
	segments := make([]cues.Segment, 0, len(shots))
	for _, shot := range shots {
		segments = append(segments, cues.Segment{
			Start: shot.GetStartTimeOffset().AsDuration().Seconds(),
			End:   shot.GetEndTimeOffset().AsDuration().Seconds(),
		})
	}
	return fromParsed(segments, nil)
}

// videoClient adapts the API client to ShotAnnotator
type videoClient struct {
	client *videointelligence.Client
}

func (c *videoClient) AnnotateShots(ctx context.Context, uri string) (*videointelligencepb.AnnotateVideoResponse, error) {
	op, err := c.client.AnnotateVideo(ctx, &videointelligencepb.AnnotateVideoRequest{
		InputUri: uri,
		Features: []videointelligencepb.Feature{videointelligencepb.Feature_SHOT_CHANGE_DETECTION},
	})
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}
