package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
)

const (
	DefaultExchange = "city.events"

	RoutingKeyOTPRequested = "account.otp.requested"

	confirmWait = 2 * time.Second
)

// OTPRequested is the event body consumed by the email service.
type OTPRequested struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Code      string    `json:"code"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newOTPRequested(msg account.CodeMessage) OTPRequested {
	return OTPRequested{
		AccountID: msg.AccountID,
		Email:     msg.To,
		Name:      msg.Name,
		Code:      msg.Code,
		Purpose:   string(msg.Purpose),
		ExpiresAt: msg.ExpiresAt.UTC(),
	}
}

// Notifier publishes verification codes to a topic exchange with publisher
// confirms and mandatory routing, so an unbound routing key is an error.
type Notifier struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewNotifier(url, exchange string) (*Notifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	n := &Notifier{
		url:      url,
		exchange: exchange,
	}
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.resetConn()
	return nil
}

func (n *Notifier) SendCode(ctx context.Context, msg account.CodeMessage) error {
	return n.publishJSON(ctx, RoutingKeyOTPRequested, newOTPRequested(msg))
}

func (n *Notifier) connect() error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		n.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}

	n.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	n.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	n.conn = conn
	n.ch = ch
	return nil
}

func (n *Notifier) ensureConnected() error {
	if n.conn != nil && !n.conn.IsClosed() && n.ch != nil {
		return nil
	}
	return n.connect()
}

func (n *Notifier) publishJSON(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, confirmWait)
		defer cancel()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ensureConnected(); err != nil {
		return err
	}

	// drop stale confirms/returns from an earlier timed-out publish
drain:
	for {
		select {
		case <-n.confirmCh:
		case <-n.returnCh:
		default:
			break drain
		}
	}

	if err := n.ch.PublishWithContext(
		ctx,
		n.exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		n.resetConn()
		return fmt.Errorf("publish failed: %w", err)
	}

	select {
	case ret := <-n.returnCh:
		return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)

	case conf := <-n.confirmCh:
		// basic.return precedes the ack for an unroutable mandatory message.
		select {
		case ret := <-n.returnCh:
			return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)
		default:
		}
		if !conf.Ack {
			return fmt.Errorf("rabbitmq nack: key=%s deliveryTag=%d", routingKey, conf.DeliveryTag)
		}
		return nil

	case <-ctx.Done():
		return fmt.Errorf("rabbitmq publish: key=%s: %w", routingKey, ctx.Err())
	}
}

func (n *Notifier) resetConn() {
	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
}
