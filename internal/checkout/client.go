// Пакет checkout — HTTP-клиент платёжного провайдера.
// Delivery Module использует его только для зачистки заброшенных
// checkout-сессий и сопутствующих планов (reaper).
package checkout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client — клиент API платёжного провайдера.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// New создаёт клиент провайдера.
func New(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger.With(slog.String("component", "checkout_client")),
	}
}

// DeleteSession удаляет checkout-сессию у провайдера.
// 2xx и 404 (уже удалена) считаются успехом — локальную запись
// можно помечать expired. Остальное — ошибка, строка остаётся pending.
func (c *Client) DeleteSession(ctx context.Context, checkoutID string) error {
	return c.delete(ctx, fmt.Sprintf("%s/v1/checkouts/%s", c.baseURL, checkoutID), "сессии", checkoutID)
}

// DeletePlan удаляет сопутствующий план у провайдера.
// Семантика успеха та же, что у DeleteSession.
func (c *Client) DeletePlan(ctx context.Context, planID string) error {
	return c.delete(ctx, fmt.Sprintf("%s/v1/plans/%s", c.baseURL, planID), "плана", planID)
}

func (c *Client) delete(ctx context.Context, reqURL, kind, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return fmt.Errorf("создание запроса удаления %s: %w", kind, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос удаления %s %s: %w", kind, id, err)
	}
	defer resp.Body.Close()

	// not found — уже удалено, цель достигнута
	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("Объект у провайдера уже отсутствует",
			slog.String("kind", kind),
			slog.String("id", id),
		)
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("провайдер отверг удаление %s %s: статус %d: %s", kind, id, resp.StatusCode, string(body))
	}

	return nil
}
