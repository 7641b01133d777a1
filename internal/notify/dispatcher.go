package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/models"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Message is a single notification awaiting delivery.
type Message struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Options configures the dispatcher.
type Options struct {
	QueueSize     int
	WorkerCount   int
	WebhookURL    string
	RetentionDays int
}

// Dispatcher records notifications durably and, when a webhook is configured,
// forwards them. Delivery is best effort: enqueueing never blocks the caller
// and failures are logged, not surfaced.
type Dispatcher struct {
	db       *gorm.DB
	logger   *logrus.Logger
	client   *resty.Client
	opts     Options
	messages chan Message
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

func NewDispatcher(db *gorm.DB, logger *logrus.Logger, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	return &Dispatcher{
		db:       db,
		logger:   logger,
		client:   resty.New().SetTimeout(10 * time.Second),
		opts:     opts,
		messages: make(chan Message, opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the delivery workers and the retention sweeper.
func (d *Dispatcher) Start() {
	for i := 0; i < d.opts.WorkerCount; i++ {
		d.wg.Add(1)
		go d.deliverLoop()
	}
	if d.opts.RetentionDays > 0 {
		d.wg.Add(1)
		go d.sweepLoop()
	}
}

// Stop drains nothing: in-flight deliveries finish, queued messages are
// dropped. Acceptable for a best-effort channel.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()
	d.wg.Wait()
}

// Notify enqueues a notification without blocking. A full or closed queue is
// logged and otherwise ignored.
func (d *Dispatcher) Notify(userID, title, message, kind string) {
	if err := d.push(Message{UserID: userID, Title: title, Message: message, Type: kind}); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"type":    kind,
		}).Warn("Dropped notification")
	}
}

func (d *Dispatcher) push(m Message) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrQueueClosed
	}
	d.mu.RUnlock()

	select {
	case d.messages <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) deliverLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case m := <-d.messages:
			d.deliver(m)
		}
	}
}

func (d *Dispatcher) deliver(m Message) {
	row := models.Notification{
		UserID:  m.UserID,
		Title:   m.Title,
		Message: m.Message,
		Type:    m.Type,
	}
	if err := d.db.Create(&row).Error; err != nil {
		d.logger.WithError(err).WithField("user_id", m.UserID).Error("Failed to persist notification")
		return
	}

	if d.opts.WebhookURL == "" {
		return
	}
	resp, err := d.client.R().SetBody(m).Post(d.opts.WebhookURL)
	if err != nil {
		d.logger.WithError(err).Warn("Notification webhook delivery failed")
		return
	}
	if resp.IsError() {
		d.logger.WithField("status", resp.StatusCode()).Warn("Notification webhook returned an error")
	}
}

// sweepLoop deletes read notifications older than the retention window.
func (d *Dispatcher) sweepLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -d.opts.RetentionDays)
			res := d.db.Where("read = ? AND created_at < ?", true, cutoff).
				Delete(&models.Notification{})
			if res.Error != nil {
				d.logger.WithError(res.Error).Error("Notification sweep failed")
				continue
			}
			if res.RowsAffected > 0 {
				d.logger.WithField("deleted", res.RowsAffected).Info("Swept read notifications")
			}
		}
	}
}

// QueueLen returns the number of queued, undelivered messages.
func (d *Dispatcher) QueueLen() int {
	return len(d.messages)
}
