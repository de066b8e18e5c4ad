package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Transport hands a rendered message to a delivery channel
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
	Close() error
}

// Gateway renders account emails and passes them to a transport
type Gateway struct {
	composer  *Composer
	transport Transport
	logger    *zap.Logger
}

// NewGateway creates a gateway over transport
func NewGateway(composer *Composer, transport Transport, logger *zap.Logger) *Gateway {
	return &Gateway{composer: composer, transport: transport, logger: logger}
}

// SendVerification sends the verification link for token
func (g *Gateway) SendVerification(ctx context.Context, username, email, token string) error {
	msg, err := g.composer.Verification(username, email, token)
	if err != nil {
		return err
	}
	return g.deliver(ctx, msg)
}

// SendReset sends the password reset link for token
func (g *Gateway) SendReset(ctx context.Context, username, email, token string) error {
	msg, err := g.composer.Reset(username, email, token)
	if err != nil {
		return err
	}
	return g.deliver(ctx, msg)
}

// SendConfirmation tells the user the account is verified
func (g *Gateway) SendConfirmation(ctx context.Context, username, email string) error {
	msg, err := g.composer.Confirmation(username, email)
	if err != nil {
		return err
	}
	return g.deliver(ctx, msg)
}

// Close releases the transport
func (g *Gateway) Close() error {
	return g.transport.Close()
}

func (g *Gateway) deliver(ctx context.Context, msg Message) error {
	if err := g.transport.Deliver(ctx, msg); err != nil {
		g.logger.Error("Failed to send email",
			zap.String("kind", string(msg.Kind)),
			zap.String("username", msg.Username),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send %s email: %w", msg.Kind, err)
	}

	g.logger.Info("Email sent",
		zap.String("kind", string(msg.Kind)),
		zap.String("username", msg.Username),
	)
	return nil
}
