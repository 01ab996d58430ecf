package minecraft

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	"github.com/goliatone/go-launcher/transport"
)

const (
	newsSiteURL          = "https://www.minecraft.net"
	defaultNewsUserAgent = "go-launcher"
)

type NewsConfig struct {
	URL       string
	SiteURL   string
	UserAgent string

	RequestTimeout time.Duration
	HTTPClient     core.HTTPDoer
	Transport      core.TransportAdapter
}

// NewsClient reads the article grid published for the launcher news page.
type NewsClient struct {
	cfg       NewsConfig
	site      *url.URL
	transport core.TransportAdapter
}

func NewNewsClient(cfg NewsConfig) (*NewsClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = core.DefaultNewsURL
	}
	if strings.TrimSpace(cfg.SiteURL) == "" {
		cfg.SiteURL = newsSiteURL
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultNewsUserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = core.DefaultHTTPTimeout
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, core.WrapError(err, goerrors.CategoryBadInput, core.ErrorBadInput, "minecraft: invalid news url", map[string]any{
			core.MetadataURL: cfg.URL,
		})
	}
	site, err := url.Parse(cfg.SiteURL)
	if err != nil || site.Scheme == "" || site.Host == "" {
		return nil, core.NewError("minecraft: invalid news site url", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			core.MetadataURL: cfg.SiteURL,
		})
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(cfg.HTTPClient)
	}
	return &NewsClient{cfg: cfg, site: site, transport: adapter}, nil
}

type newsGrid struct {
	Articles []newsArticle `json:"article_grid"`
	Count    int           `json:"article_count"`
}

type newsArticle struct {
	DefaultTile     newsTile  `json:"default_tile"`
	PreferredTile   *newsTile `json:"preferred_tile"`
	ArticleLang     string    `json:"articleLang"`
	PrimaryCategory string    `json:"primary_category"`
	ArticleURL      string    `json:"article_url"`
	PublishDate     string    `json:"publish_date"`
	Tags            []string  `json:"tags"`
}

type newsTile struct {
	SubHeader string    `json:"sub_header"`
	Title     string    `json:"title"`
	TileSize  string    `json:"tile_size"`
	Image     newsImage `json:"image"`
}

type newsImage struct {
	ContentType string `json:"content_type"`
	ImageURL    string `json:"imageURL"`
}

// Articles fetches the newest pageSize articles. Relative image and article
// links are resolved against the site url, and the preferred tile wins over
// the default one when present.
func (c *NewsClient) Articles(ctx context.Context, pageSize int) (core.NewsPage, error) {
	if c == nil || c.transport == nil {
		return core.NewsPage{}, core.NewError("minecraft: news client is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if pageSize <= 0 {
		pageSize = core.DefaultNewsPageSize
	}
	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodGet,
		URL:    c.cfg.URL,
		Query:  map[string]string{"pageSize": strconv.Itoa(pageSize)},
		Headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": c.cfg.UserAgent,
		},
		Timeout: c.cfg.RequestTimeout,
	})
	if err != nil {
		return core.NewsPage{}, err
	}
	if statusErr := transport.StatusError(res, core.ErrorFetchNetwork, "minecraft: fetch news"); statusErr != nil {
		return core.NewsPage{}, statusErr
	}

	var grid newsGrid
	if err := transport.DecodeJSON(res.Body, &grid, core.ErrorFetchDecode); err != nil {
		return core.NewsPage{}, err
	}

	page := core.NewsPage{Articles: make([]core.NewsArticle, 0, len(grid.Articles)), Total: grid.Count}
	for _, item := range grid.Articles {
		tile := item.DefaultTile
		if item.PreferredTile != nil && strings.TrimSpace(item.PreferredTile.Title) != "" {
			tile = *item.PreferredTile
		}
		articleURL := c.absolute(item.ArticleURL)
		if strings.TrimSpace(tile.Title) == "" || articleURL == "" {
			continue
		}
		page.Articles = append(page.Articles, core.NewsArticle{
			Title:            strings.TrimSpace(tile.Title),
			SubHeader:        strings.TrimSpace(tile.SubHeader),
			ArticleURL:       articleURL,
			ImageURL:         c.absolute(tile.Image.ImageURL),
			ImageContentType: strings.TrimSpace(tile.Image.ContentType),
			TileSize:         strings.TrimSpace(tile.TileSize),
			Category:         strings.TrimSpace(item.PrimaryCategory),
			Language:         strings.TrimSpace(item.ArticleLang),
			Tags:             append([]string(nil), item.Tags...),
			PublishDate:      strings.TrimSpace(item.PublishDate),
		})
	}
	if page.Total < len(page.Articles) {
		page.Total = len(page.Articles)
	}
	return page, nil
}

func (c *NewsClient) absolute(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return c.site.ResolveReference(parsed).String()
}

var _ core.NewsSource = (*NewsClient)(nil)
