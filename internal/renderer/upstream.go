package renderer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
)

const DefaultPathPattern = "/{tileset}/{z}/{x}/{y}"

type UpstreamConfig struct {
	BaseURL     string
	PathPattern string
	UserAgent   string
	Timeout     time.Duration
}

// UpstreamRenderer fetches already rendered tiles from an XYZ tile server.
// 200 is content, 204 and 404 are empty tiles, anything else is an error.
type UpstreamRenderer struct {
	baseURL     string
	pathPattern string
	userAgent   string
	httpClient  *http.Client
	logger      logger.Logger
}

func NewUpstreamRenderer(cfg UpstreamConfig, l logger.Logger) *UpstreamRenderer {
	pattern := cfg.PathPattern
	if pattern == "" {
		pattern = DefaultPathPattern
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &UpstreamRenderer{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		pathPattern: pattern,
		userAgent:   cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: l,
	}
}

var _ TileRenderer = (*UpstreamRenderer)(nil)

func (r *UpstreamRenderer) Render(ctx context.Context, c tile.Coord) ([]byte, bool, error) {
	upstreamURL := r.urlFor(c)
	r.logger.Debug("fetching from upstream", "url", upstreamURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch tile from upstream: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	tileData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read tile data: %w", err)
	}

	if len(tileData) == 0 {
		return nil, false, nil
	}

	return tileData, true, nil
}

func (r *UpstreamRenderer) urlFor(c tile.Coord) string {
	path := strings.NewReplacer(
		"{tileset}", c.Tileset,
		"{z}", strconv.FormatUint(uint64(c.Z), 10),
		"{x}", strconv.FormatUint(uint64(c.X), 10),
		"{y}", strconv.FormatUint(uint64(c.Y), 10),
	).Replace(r.pathPattern)
	return r.baseURL + path
}
