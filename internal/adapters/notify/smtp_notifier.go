package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
)

// SMTPNotifier mails a summary of risky verdicts to the configured recipients
type SMTPNotifier struct {
	address  string
	username string
	password string
	from     string
	to       []string
	logger   *zap.Logger
}

// NewSMTPNotifier creates a new SMTP alert notifier
func NewSMTPNotifier(cfg config.AlertsConfig, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		address:  cfg.SMTPAddress,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		to:       cfg.To,
		logger:   logger,
	}
}

// Notify sends the alert for a session that has final feedback
func (n *SMTPNotifier) Notify(ctx context.Context, snapshot core.SessionSnapshot) error {
	if snapshot.Feedback == nil {
		return fmt.Errorf("%w: final feedback is required", core.ErrMissingStage)
	}
	if n.from == "" || len(n.to) == 0 {
		return &core.NotConfiguredError{Provider: "alerts", Missing: []string{"FOOD_SAFETY_ALERTS_FROM", "FOOD_SAFETY_ALERTS_TO"}}
	}

	msg := BuildMessage(n.from, n.to, snapshot, time.Now())
	if err := n.send(ctx, msg); err != nil {
		return err
	}

	n.logger.Info("Alert sent",
		zap.String("session_id", snapshot.ID),
		zap.String("risk_level", string(snapshot.Feedback.RiskLevel)),
		zap.Strings("recipients", n.to))
	return nil
}

func (n *SMTPNotifier) send(ctx context.Context, msg []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", n.address)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if n.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", n.username, n.password)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(n.from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range n.to {
		if err := c.Rcpt(recipient, nil); err != nil {
			n.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send alert data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the alert is already accepted at this point
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// BuildMessage renders the plain-text alert email
func BuildMessage(from string, to []string, snapshot core.SessionSnapshot, now time.Time) []byte {
	fb := snapshot.Feedback
	food := "Food item"
	if snapshot.ImageAnalysis != nil && snapshot.ImageAnalysis.FoodType.Name != "" {
		food = snapshot.ImageAnalysis.FoodType.Name
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: [Food safety] %s risk: %s\r\n", strings.ToUpper(string(fb.RiskLevel)), food)
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "Session: %s\r\n", snapshot.ID)
	fmt.Fprintf(&buf, "Food: %s\r\n", food)
	if c := snapshot.Classification; c != nil {
		fmt.Fprintf(&buf, "Grade: %s (%.1f/100)\r\n", c.Grade, c.Score)
	}
	verdict := "UNSAFE"
	if fb.IsSafe {
		verdict = "SAFE"
	}
	fmt.Fprintf(&buf, "Verdict: %s\r\n", verdict)
	fmt.Fprintf(&buf, "Risk level: %s\r\n", strings.ToUpper(string(fb.RiskLevel)))
	fmt.Fprintf(&buf, "Recommendation: %s\r\n", fb.Recommendation)
	if len(fb.Explanation) > 0 {
		buf.WriteString("\r\nFindings:\r\n")
		for _, line := range fb.Explanation {
			fmt.Fprintf(&buf, "  - %s\r\n", line)
		}
	}
	if fb.Narrative != "" {
		buf.WriteString("\r\n")
		buf.WriteString(strings.ReplaceAll(fb.Narrative, "\n", "\r\n"))
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}
