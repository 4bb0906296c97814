package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrBatchTimeout reports that the aggregate deadline for a batch fetch
// elapsed before every worker finished. Results gathered up to that point
// are still returned.
var ErrBatchTimeout = errors.New("dearrow batch timed out")

// DeArrow client defaults.
const (
	DefaultBaseURL        = "https://sponsor.ajay.app"
	DefaultWorkers        = 10
	DefaultRequestTimeout = 5 * time.Second
	DefaultBatchTimeout   = 60 * time.Second
)

// BrandingTitle is one crowd-sourced title suggestion.
type BrandingTitle struct {
	Title    string `json:"title"`
	Original bool   `json:"original"`
	Votes    int    `json:"votes"`
	Locked   bool   `json:"locked"`
}

// BrandingThumbnail is one crowd-sourced thumbnail suggestion.
type BrandingThumbnail struct {
	Timestamp float64 `json:"timestamp"`
	Original  bool    `json:"original"`
	Votes     int     `json:"votes"`
	Locked    bool    `json:"locked"`
}

// Branding is the DeArrow metadata for a single video.
type Branding struct {
	Titles        []BrandingTitle     `json:"titles"`
	Thumbnails    []BrandingThumbnail `json:"thumbnails"`
	RandomTime    float64             `json:"randomTime"`
	VideoDuration *float64            `json:"videoDuration"`
}

// DeArrowClient fetches video branding from the DeArrow API.
type DeArrowClient struct {
	baseURL        string
	httpClient     *http.Client
	workers        int
	requestTimeout time.Duration
	batchTimeout   time.Duration
	log            *slog.Logger
}

// NewDeArrowClient creates a client. Zero-valued options fall back to the
// package defaults.
func NewDeArrowClient(baseURL string, workers int, requestTimeout, batchTimeout time.Duration, log *slog.Logger) *DeArrowClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}
	return &DeArrowClient{
		baseURL:        baseURL,
		httpClient:     &http.Client{},
		workers:        workers,
		requestTimeout: requestTimeout,
		batchTimeout:   batchTimeout,
		log:            log,
	}
}

// FetchBranding fetches branding for one video, bounded by the per-request
// timeout.
func (c *DeArrowClient) FetchBranding(ctx context.Context, videoID string) (*Branding, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/api/branding?videoID=%s", c.baseURL, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch branding %s: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch branding %s: status %d", videoID, resp.StatusCode)
	}
	var branding Branding
	if err := json.NewDecoder(resp.Body).Decode(&branding); err != nil {
		return nil, fmt.Errorf("decode branding %s: %w", videoID, err)
	}
	return &branding, nil
}

type brandingResult struct {
	videoID  string
	branding *Branding
	err      error
}

// FetchBatch fetches branding for a set of video ids using a fixed worker
// pool. Ids whose requests error or time out are dropped from the result;
// only the aggregate deadline surfaces as an error, and even then whatever
// was gathered so far is returned alongside ErrBatchTimeout.
func (c *DeArrowClient) FetchBatch(ctx context.Context, videoIDs []string) (map[string]Branding, error) {
	results := make(map[string]Branding, len(videoIDs))
	if len(videoIDs) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.batchTimeout)
	defer cancel()

	jobs := make(chan string, len(videoIDs))
	resultChan := make(chan brandingResult, len(videoIDs))

	var wg sync.WaitGroup
	workers := c.workers
	if workers > len(videoIDs) {
		workers = len(videoIDs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for videoID := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				branding, err := c.FetchBranding(ctx, videoID)
				resultChan <- brandingResult{videoID: videoID, branding: branding, err: err}
			}
		}()
	}

	for _, videoID := range videoIDs {
		jobs <- videoID
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Collect until the workers drain or the aggregate deadline passes.
	// On deadline we stop waiting; in-flight requests are abandoned to
	// their own per-request timeouts.
	received := 0
	for {
		select {
		case res, ok := <-resultChan:
			if !ok {
				if received < len(videoIDs) && ctx.Err() != nil {
					return results, ErrBatchTimeout
				}
				return results, nil
			}
			received++
			if res.err != nil {
				c.log.Warn("dearrow lookup dropped", "video_id", res.videoID, "error", res.err)
				continue
			}
			results[res.videoID] = *res.branding
		case <-ctx.Done():
			c.log.Warn("dearrow batch deadline elapsed", "gathered", len(results), "total", len(videoIDs))
			return results, ErrBatchTimeout
		}
	}
}
