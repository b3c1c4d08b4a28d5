// Пакет notify — диспетчер событий доставки для внешнего fan-out
// (email/webhook). Отправка асинхронная с ограниченным числом
// воркеров и логируемыми исходами; сбой отправки никогда не
// распространяется на вызывающий код и не влияет на состояние заказа.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/waqaskhan1437/wishesu-sub002/internal/domain/model"
)

// Prometheus-метрики уведомлений.
var (
	notifyEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_notify_events_total",
		Help: "Общее количество событий уведомлений по исходам",
	}, []string{"event", "result"})

	notifyQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_notify_dropped_total",
		Help: "Количество событий, отброшенных из-за переполнения очереди",
	})
)

// Dispatcher — асинхронный отправитель событий во внешний webhook.
type Dispatcher struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger

	queue   chan model.Event
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New создаёт диспетчер уведомлений.
// webhookURL пустой — диспетчер работает вхолостую (события логируются
// и отбрасываются), удобно для локальной разработки.
func New(webhookURL string, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(slog.String("component", "notify")),
		queue:      make(chan model.Event, queueSize),
		workers:    workers,
	}
}

// Start запускает воркеры отправки. Вызывается один раз при старте.
func (d *Dispatcher) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(runCtx)
	}

	d.logger.Info("Диспетчер уведомлений запущен",
		slog.Int("workers", d.workers),
		slog.Bool("enabled", d.webhookURL != ""),
	)
}

// Stop останавливает воркеры и дожидается их завершения.
// События, оставшиеся в очереди, не доотправляются — контракт best-effort.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("Диспетчер уведомлений остановлен")
}

// Dispatch ставит событие в очередь отправки. Не блокирует:
// при переполнении очереди событие отбрасывается с логом и метрикой.
func (d *Dispatcher) Dispatch(event model.Event) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	select {
	case d.queue <- event:
	default:
		notifyQueueDropped.Inc()
		d.logger.Warn("Очередь уведомлений переполнена, событие отброшено",
			slog.String("event", event.Event),
			slog.String("order_id", event.Order.OrderID),
		)
	}
}

// run — цикл воркера отправки.
func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.send(ctx, event)
		}
	}
}

// send выполняет одну отправку и логирует исход.
func (d *Dispatcher) send(ctx context.Context, event model.Event) {
	if d.webhookURL == "" {
		d.logger.Debug("Уведомления выключены, событие пропущено",
			slog.String("event", event.Event),
			slog.String("order_id", event.Order.OrderID),
		)
		notifyEventsTotal.WithLabelValues(event.Event, "skipped").Inc()
		return
	}

	if err := d.post(ctx, event); err != nil {
		// ExternalNotifyFailure: только лог, никогда не наружу
		notifyEventsTotal.WithLabelValues(event.Event, "error").Inc()
		d.logger.Error("Ошибка отправки уведомления",
			slog.String("event", event.Event),
			slog.String("order_id", event.Order.OrderID),
			slog.String("error", err.Error()),
		)
		return
	}

	notifyEventsTotal.WithLabelValues(event.Event, "success").Inc()
	d.logger.Info("Уведомление отправлено",
		slog.String("event", event.Event),
		slog.String("event_id", event.EventID),
		slog.String("order_id", event.Order.OrderID),
	)
}

// post выполняет HTTP POST события на webhook.
func (d *Dispatcher) post(ctx context.Context, event model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("сериализация события: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook вернул статус %d", resp.StatusCode)
	}
	return nil
}
