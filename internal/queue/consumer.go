package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartNotificationConsumer connects to RabbitMQ, declares the durable
// order.notifications queue, and starts consuming. Each message is
// rendered into an email, handed to the SMTP relay, and appended to
// logs/orders.log. The function runs a reconnect loop and keeps running
// across broker restarts; a message that cannot be processed is rejected
// without requeueing so a poison payload cannot wedge the queue.
func StartNotificationConsumer() error {
	url := brokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notification-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("notification-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notification-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(notificationQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(notificationQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			log.Printf("notification-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var ev OrderNotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	if err := appendOrderLog(ev); err != nil {
		return err
	}

	// Mail delivery is best-effort even inside the consumer: a broken
	// relay must not pile the queue up with endless redeliveries.
	if err := sendNotificationMail(ev); err != nil {
		log.Printf("notification-consumer: mail delivery failed for order %s: %v", ev.OrderID, err)
	}
	return nil
}

func appendOrderLog(ev OrderNotificationEvent) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "orders.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s | order_id=%s | user=%s | status=%s | total=%d %s | capture_id=%s\n",
		ev.OccurredAt, ev.Kind, ev.OrderID, ev.UserEmail, ev.Status, ev.TotalMinor, ev.Currency, ev.CaptureID)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// sendNotificationMail renders the event into a small HTML email and sends
// it through the SMTP relay configured via MAIL_HOST, MAIL_PORT,
// MAIL_USER, MAIL_PASSWORD and MAIL_FROM. Without a configured host the
// consumer only logs, which keeps local development broker-only.
func sendNotificationMail(ev OrderNotificationEvent) error {
	host := os.Getenv("MAIL_HOST")
	if host == "" || ev.UserEmail == "" {
		return nil
	}
	port := os.Getenv("MAIL_PORT")
	if port == "" {
		port = "587"
	}
	from := os.Getenv("MAIL_FROM")
	if from == "" {
		from = "no-reply@manilasbkoverdose.com"
	}

	subject, html := renderNotification(ev)
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + ev.UserEmail,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		html,
	}, "\r\n")

	var auth smtp.Auth
	if user := os.Getenv("MAIL_USER"); user != "" {
		auth = smtp.PlainAuth("", user, os.Getenv("MAIL_PASSWORD"), host)
	}
	return smtp.SendMail(host+":"+port, auth, from, []string{ev.UserEmail}, []byte(msg))
}

func renderNotification(ev OrderNotificationEvent) (subject, html string) {
	var items strings.Builder
	for _, it := range ev.Items {
		fmt.Fprintf(&items, "<li>%s - %d x %s %s</li>", it.Name, it.Quantity,
			formatMinor(it.UnitPriceMinor), it.Currency)
	}
	total := formatMinor(ev.TotalMinor) + " " + ev.Currency

	switch ev.Kind {
	case NotificationOrderPaid:
		subject = "Payment confirmed"
		html = fmt.Sprintf("<h2>Payment received</h2><p>We received payment for order <strong>%s</strong>.</p><p>Total: %s</p><ul>%s</ul>",
			ev.OrderID, total, items.String())
	case NotificationOrderCancelled:
		reason := ""
		if ev.Reason != "" {
			reason = fmt.Sprintf("<p>Reason: %s</p>", ev.Reason)
		}
		subject = fmt.Sprintf("Your order %s has been cancelled", ev.OrderID)
		html = fmt.Sprintf("<h1>Order Cancelled</h1><p>Your order <strong>%s</strong> has been cancelled.</p>%s<p>If you believe this is a mistake, please contact support.</p>",
			ev.OrderID, reason)
	default:
		subject = "Order created - complete payment"
		link := ""
		if ev.ApprovalURL != "" {
			link = fmt.Sprintf(`<p><a href="%s">Pay with PayPal</a></p>`, ev.ApprovalURL)
		}
		html = fmt.Sprintf("<h1>Order Created</h1><p>Thank you for your order. Please complete payment.</p><p>Order ID: %s</p><p>Total: %s</p><ul>%s</ul>%s",
			ev.OrderID, total, items.String(), link)
	}
	return subject, html
}

func formatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
