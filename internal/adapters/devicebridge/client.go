package devicebridge

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const opTimeout = 5 * time.Second

var ErrTimeout = errors.New("mqtt operation timed out")

// MessageHandler procesa un mensaje entrante.
type MessageHandler func(topic string, payload []byte) error

// Broker es lo que el bridge usa del cliente MQTT.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Disconnect()
}

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Client envuelve paho con esperas acotadas.
type Client struct {
	client  mqtt.Client
	onError func(topic string, err error)
}

// Dial conecta al broker. onError recibe las fallas de los handlers (puede ser nil).
func Dial(cfg Config, onError func(topic string, err error)) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(opTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker: %w", ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", err)
	}

	return &Client{client: client, onError: onError}, nil
}

func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil && c.onError != nil {
			c.onError(msg.Topic(), err)
		}
	})
	return wait(token, "subscribe to topic "+topic)
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return wait(c.client.Publish(topic, qos, retained, payload), "publish to topic "+topic)
}

func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func wait(token mqtt.Token, op string) error {
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
