package core

import "context"

const (
	DefaultNewsPageSize = 20
	MaxNewsPageSize     = 100
)

// NewsArticle is one tile of the launcher news feed. Urls are absolute.
type NewsArticle struct {
	Title            string   `json:"title"`
	SubHeader        string   `json:"sub_header,omitempty"`
	ArticleURL       string   `json:"article_url"`
	ImageURL         string   `json:"image_url,omitempty"`
	ImageContentType string   `json:"image_content_type,omitempty"`
	TileSize         string   `json:"tile_size,omitempty"`
	Category         string   `json:"category,omitempty"`
	Language         string   `json:"language,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	PublishDate      string   `json:"publish_date,omitempty"`
}

type NewsPage struct {
	Articles []NewsArticle `json:"articles"`
	Total    int           `json:"total"`
}

type NewsSource interface {
	Articles(ctx context.Context, pageSize int) (NewsPage, error)
}

// News returns the latest launcher news. A page size outside 1..100 falls
// back to the default of 20.
func (s *Service) News(ctx context.Context, pageSize int) (page NewsPage, err error) {
	startedAt := s.now()
	defer func() {
		s.observeOperation(ctx, startedAt, "news", err, map[string]any{
			"page_size": pageSize,
			"articles":  len(page.Articles),
		})
	}()

	if s.news == nil {
		err = s.dependencyError("news source")
		return NewsPage{}, err
	}
	if pageSize <= 0 || pageSize > MaxNewsPageSize {
		pageSize = DefaultNewsPageSize
	}
	page, err = s.news.Articles(ctx, pageSize)
	if err != nil {
		err = s.mapError(err)
		return NewsPage{}, err
	}
	return page, nil
}
