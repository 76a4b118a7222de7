package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"go.uber.org/zap"
)

var _ port.DeadLetterNotifier = (*SMTPNotifier)(nil)

// SMTPNotifier mails the operations inbox when a job message exhausts its
// deliveries and lands on the dead-letter stream.
type SMTPNotifier struct {
	host   string
	port   int
	from   string
	to     string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from, to string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, to: to, logger: logger}
}

func (n *SMTPNotifier) NotifyDeadLetter(_ context.Context, body []byte, reason string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	subject := "Transcode job dead-lettered"
	text := fmt.Sprintf(
		"A job message was moved to the dead-letter stream.\r\n\r\n"+
			"Reason: %s\r\n"+
			"Message: %s\r\n\r\n"+
			"Inspect the dead-letter stream and requeue the job once the cause is fixed.\r\n",
		reason, string(body),
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, n.to, subject, text,
	)

	err := smtp.SendMail(addr, nil, n.from, []string{n.to}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send dead-letter notification email",
			zap.String("to", n.to),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("dead-letter notification email sent",
		zap.String("to", n.to),
		zap.String("reason", reason),
	)
	return nil
}
