package mail

import (
	"fmt"

	"go.uber.org/zap"
)

// Mail drivers
const (
	DriverLog  = "log"
	DriverSMTP = "smtp"
	DriverAMQP = "amqp"
)

// Settings selects and configures a transport
type Settings struct {
	Driver  string
	SMTP    SMTPConfig
	AMQPURL string
	Queue   string
	Links   Links
}

// New builds the gateway for the configured driver
func New(settings Settings, logger *zap.Logger) (*Gateway, error) {
	composer, err := NewComposer(settings.Links)
	if err != nil {
		return nil, err
	}

	var transport Transport
	switch settings.Driver {
	case DriverSMTP:
		transport, err = NewSMTPTransport(settings.SMTP)
	case DriverAMQP:
		transport, err = NewQueueTransport(settings.AMQPURL, settings.Queue)
	case DriverLog, "":
		transport = NewLogTransport(logger)
	default:
		err = fmt.Errorf("unknown mail driver %q", settings.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mail transport: %w", err)
	}

	return NewGateway(composer, transport, logger.Named("mail")), nil
}
