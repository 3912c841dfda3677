package browserfetch

import (
	"context"

	"github.com/terminwatch/terminwatch/internal/models"
	"github.com/terminwatch/terminwatch/internal/scrape"
)

// Client будет выполнять полноценный браузерный рендеринг для площадок с
// requires_browser. Пока это заглушка: контракт Fetcher сохранён, чтобы
// реализация подключалась без изменения вызывающего кода.
type Client struct{}

func New() *Client { return &Client{} }

func (c *Client) Fetch(ctx context.Context, targetURL string) (scrape.Result, error) {
	return scrape.Result{}, &scrape.Failure{
		Kind:    models.CheckErrorParsing,
		Message: "browser rendering not implemented",
	}
}
