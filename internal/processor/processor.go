package taskprocessor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"coffeehouse/internal/models"
	"coffeehouse/internal/repository"
)

type Publisher interface {
	Publish(topic string, key, message []byte) error
}

type Config struct {
	Topic        string
	PollInterval time.Duration
	Limit        int
	MaxAttempts  int
	RetryDelay   time.Duration
}

// TaskProcessor drains the outbox table into Kafka.
type TaskProcessor struct {
	repo         repository.TaskRepository
	producer     Publisher
	log          *slog.Logger
	topic        string
	pollInterval time.Duration
	limit        int
	maxAttempts  int
	retryDelay   time.Duration
	now          func() time.Time
}

func NewTaskProcessor(repo repository.TaskRepository, producer Publisher, cfg Config, log *slog.Logger) *TaskProcessor {
	p := &TaskProcessor{
		repo:         repo,
		producer:     producer,
		log:          log,
		topic:        cfg.Topic,
		pollInterval: cfg.PollInterval,
		limit:        cfg.Limit,
		maxAttempts:  cfg.MaxAttempts,
		retryDelay:   cfg.RetryDelay,
		now:          time.Now,
	}
	if p.pollInterval <= 0 {
		p.pollInterval = 2 * time.Second
	}
	if p.limit <= 0 {
		p.limit = 50
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 3
	}
	if p.retryDelay <= 0 {
		p.retryDelay = 2 * time.Second
	}
	return p
}

func (p *TaskProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessPendingTasks(ctx)
		}
	}
}

// ProcessPendingTasks publishes one batch and returns how many tasks were
// delivered.
func (p *TaskProcessor) ProcessPendingTasks(ctx context.Context) int {
	tasks, err := p.repo.GetPendingTasks(ctx, p.limit, p.maxAttempts)
	if err != nil {
		p.log.Error("fetch pending tasks", "error", err)
		return 0
	}
	sent := 0
	for _, task := range tasks {
		if err := p.repo.MarkTaskProcessing(ctx, task.ID); err != nil {
			p.log.Error("mark task processing", "task_id", task.ID, "error", err)
			continue
		}

		if err := p.producer.Publish(p.topic, eventKey(task.Payload), task.Payload); err != nil {
			p.update(ctx, task, err)
			continue
		}
		sent++
		if err := p.repo.DeleteTask(ctx, task.ID); err != nil {
			p.log.Error("delete published task", "task_id", task.ID, "error", err)
		}
	}
	return sent
}

func (p *TaskProcessor) update(ctx context.Context, task *repository.Task, err error) {
	newAttempt := task.AttemptCount + 1
	newStatus := repository.TaskStatusFailed
	if newAttempt >= p.maxAttempts {
		newStatus = repository.TaskStatusNoAttemptsLeft
	}
	nextAttempt := p.now().Add(p.retryDelay)
	if errUpd := p.repo.UpdateTaskFailure(ctx, task.ID, newAttempt, newStatus, nextAttempt); errUpd != nil {
		p.log.Error("update failed task", "task_id", task.ID, "error", errUpd)
	}
	p.log.Warn("publish task failed", "task_id", task.ID, "attempt", newAttempt, "status", newStatus, "error", err)
}

// eventKey partitions by order so one order's events stay in sequence.
func eventKey(payload []byte) []byte {
	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil || ev.OrderID == "" {
		return nil
	}
	return []byte(ev.OrderID)
}
