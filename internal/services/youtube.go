package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	yt "github.com/kkdai/youtube/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"recapstudio-backend/internal/models"
)

const styleSearchLimit = 10

// YouTubeService looks up channel uploads for style learning and downloads
// source videos given as links.
type YouTubeService struct {
	defaultKey string
	apiOpts    []option.ClientOption
	ytClient   *yt.Client
}

// NewYouTubeService uses defaultKey when a run brings no key of its own.
// apiOpts are passed to the Data API client after the key.
func NewYouTubeService(defaultKey string, httpClient *http.Client, apiOpts ...option.ClientOption) *YouTubeService {
	client := &yt.Client{}
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	return &YouTubeService{
		defaultKey: defaultKey,
		apiOpts:    apiOpts,
		ytClient:   client,
	}
}

// AnalyzeChannel fetches the most viewed videos of a channel and derives an
// editing-style profile from each title and description.
func (s *YouTubeService) AnalyzeChannel(ctx context.Context, channelID, apiKey string) ([]models.StyleAnalysis, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, fmt.Errorf("channel id is required")
	}
	if apiKey == "" {
		apiKey = s.defaultKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no YouTube API key configured")
	}

	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, s.apiOpts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}

	resp, err := svc.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		Order("viewCount").
		MaxResults(styleSearchLimit).
		Type("video").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("YouTube search failed: %w", err)
	}

	analyses := make([]models.StyleAnalysis, 0, len(resp.Items))
	for i, item := range resp.Items {
		if item.Id == nil || item.Snippet == nil {
			continue
		}
		analyses = append(analyses, AnalyzeVideoStyle(item.Id.VideoId, item.Snippet.Title, item.Snippet.Description, i, len(resp.Items)))
	}
	return analyses, nil
}

// AnalyzeVideoStyle applies the keyword heuristics to one video. rank is the
// zero-based position in the view-count ordering out of total results.
func AnalyzeVideoStyle(videoID, title, description string, rank, total int) models.StyleAnalysis {
	return models.StyleAnalysis{
		SourceVideoID:            videoID,
		EditingStyle:             editingStyleFor(title),
		AverageClipLengthSeconds: clipLengthFor(title),
		TransitionTags:           transitionsFor(description),
		PopularityScore:          popularityScore(rank, total),
	}
}

func editingStyleFor(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "recap") || strings.Contains(t, "summary"):
		return "fast-paced"
	case strings.Contains(t, "analysis") || strings.Contains(t, "review"):
		return "detailed"
	case strings.Contains(t, "trailer") || strings.Contains(t, "teaser"):
		return "dramatic"
	}
	return "balanced"
}

func clipLengthFor(title string) int {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "quick") || strings.Contains(t, "fast"):
		return 2
	case strings.Contains(t, "detailed") || strings.Contains(t, "full"):
		return 5
	}
	return 3
}

func transitionsFor(description string) []string {
	d := strings.ToLower(description)
	var tags []string
	if strings.Contains(d, "action") {
		tags = append(tags, "quick-cut")
	}
	if strings.Contains(d, "drama") {
		tags = append(tags, "fade")
	}
	if strings.Contains(d, "comedy") {
		tags = append(tags, "jump-cut")
	}
	if len(tags) == 0 {
		tags = append(tags, "standard")
	}
	return tags
}

// popularityScore ranks results linearly from 100 down to 100/total.
func popularityScore(rank, total int) float64 {
	if total <= 0 || rank < 0 || rank >= total {
		return 0
	}
	return 100 * float64(total-rank) / float64(total)
}

// DownloadVideo opens the best progressive MP4 stream of a YouTube link. The
// caller closes the returned reader.
func (s *YouTubeService) DownloadVideo(ctx context.Context, videoURL string) (io.ReadCloser, string, error) {
	video, err := s.ytClient.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch YouTube video metadata: %w", err)
	}

	formats := video.Formats.Type("video/mp4")
	if withAudio := formats.WithAudioChannels(); len(withAudio) > 0 {
		formats = withAudio
	}
	if len(formats) == 0 {
		return nil, "", fmt.Errorf("no mp4 video formats available")
	}
	formats.Sort()
	best := formats[0]

	stream, _, err := s.ytClient.GetStreamContext(ctx, video, &best)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open video stream: %w", err)
	}

	return stream, video.ID + ".mp4", nil
}
