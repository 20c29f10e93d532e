package events

import (
    "context"
    "fmt"
    "log/slog"
    "sync"
    "time"

    "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher forwards events to a topic exchange, routing key = Kind.
type AMQPPublisher struct {
    mu       sync.Mutex
    conn     *amqp091.Connection
    channel  *amqp091.Channel
    exchange string
}

// DialAMQP connects to url and declares the durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
    conn, err := amqp091.Dial(url)
    if err != nil { return nil, fmt.Errorf("dial AMQP: %w", err) }
    channel, err := conn.Channel()
    if err != nil {
        conn.Close()
        return nil, fmt.Errorf("open channel: %w", err)
    }
    p := &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}
    err = channel.ExchangeDeclare(
        exchange, // name
        "topic",  // type
        true,     // durable
        false,    // auto-deleted
        false,    // internal
        false,    // no-wait
        nil,      // arguments
    )
    if err != nil {
        p.Close()
        return nil, fmt.Errorf("declare exchange: %w", err)
    }
    return p, nil
}

// Subscriber adapts the publisher to the Bus.
func (p *AMQPPublisher) Subscriber() Subscriber {
    return func(ctx context.Context, e Event) error { return p.Send(ctx, e) }
}

// Send publishes one event. Channels are not safe for concurrent publishes, hence the mutex.
func (p *AMQPPublisher) Send(ctx context.Context, e Event) error {
    body, err := e.ToJSON()
    if err != nil { return fmt.Errorf("marshal event: %w", err) }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()

    p.mu.Lock()
    defer p.mu.Unlock()
    err = p.channel.PublishWithContext(
        ctx,
        p.exchange,     // exchange
        string(e.Kind), // routing key
        false,          // mandatory
        false,          // immediate
        amqp091.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp091.Persistent,
            Timestamp:    e.At,
            Body:         body,
        },
    )
    if err != nil { return fmt.Errorf("publish event: %w", err) }
    slog.DebugContext(ctx, "published event", "kind", string(e.Kind), "entity_id", e.EntityID, "exchange", p.exchange)
    return nil
}

func (p *AMQPPublisher) Close() error {
    if p.channel != nil {
        p.channel.Close()
    }
    if p.conn != nil { return p.conn.Close() }
    return nil
}
