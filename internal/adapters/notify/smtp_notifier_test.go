package notify

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
)

type received struct {
	mu   sync.Mutex
	from string
	to   []string
	data string
}

type backend struct{ r *received }

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{r: b.r}, nil
}

type session struct{ r *received }

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if strings.HasPrefix(to, "reject") {
		return &smtp.SMTPError{Code: 550, Message: "no such user"}
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.to = append(s.r.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.data = string(b)
	return nil
}

func (s *session) Reset()        {}
func (s *session) Logout() error { return nil }

func startServer(t *testing.T) (string, *received) {
	t.Helper()
	r := &received{}
	srv := smtp.NewServer(&backend{r: r})
	srv.Domain = "localhost"
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return ln.Addr().String(), r
}

func unsafeSnapshot() core.SessionSnapshot {
	return core.SessionSnapshot{
		ID:             "sess-1",
		ImageAnalysis:  &core.ImageAnalysisResult{FoodType: core.FoodType{Name: "Bread", Category: core.CategoryGrain}},
		Classification: &core.QualityClassification{Grade: core.GradeD, Score: 32.5},
		Feedback: &core.FinalFeedback{
			IsSafe:         false,
			Recommendation: "Do not consume. Discard immediately.",
			Explanation:    []string{"Mold detected", "High gas level"},
			RiskLevel:      core.RiskCritical,
		},
	}
}

func TestNotifySendsSummary(t *testing.T) {
	addr, r := startServer(t)
	n := NewSMTPNotifier(config.AlertsConfig{
		SMTPAddress: addr,
		From:        "agent@example.com",
		To:          []string{"reject@example.com", "ops@example.com"},
	}, zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), unsafeSnapshot()))

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, "agent@example.com", r.from)
	assert.Equal(t, []string{"ops@example.com"}, r.to)
	assert.Contains(t, r.data, "Subject: [Food safety] CRITICAL risk: Bread")
	assert.Contains(t, r.data, "Grade: D (32.5/100)")
	assert.Contains(t, r.data, "Verdict: UNSAFE")
	assert.Contains(t, r.data, "  - Mold detected")
}

func TestNotifyAllRecipientsRejected(t *testing.T) {
	addr, _ := startServer(t)
	n := NewSMTPNotifier(config.AlertsConfig{
		SMTPAddress: addr,
		From:        "agent@example.com",
		To:          []string{"reject@example.com"},
	}, zap.NewNop())

	err := n.Notify(context.Background(), unsafeSnapshot())
	assert.ErrorContains(t, err, "all recipients were rejected")
}

func TestNotifyRequiresFeedback(t *testing.T) {
	n := NewSMTPNotifier(config.AlertsConfig{From: "a@example.com", To: []string{"b@example.com"}}, zap.NewNop())
	err := n.Notify(context.Background(), core.SessionSnapshot{ID: "x"})
	assert.ErrorIs(t, err, core.ErrMissingStage)
}

func TestNotifyNotConfigured(t *testing.T) {
	n := NewSMTPNotifier(config.AlertsConfig{SMTPAddress: "localhost:25"}, zap.NewNop())
	err := n.Notify(context.Background(), unsafeSnapshot())
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestBuildMessageWithoutClassification(t *testing.T) {
	snap := unsafeSnapshot()
	snap.ImageAnalysis = nil
	snap.Classification = nil
	snap.Feedback.Narrative = "line one\nline two"

	msg := string(BuildMessage("a@example.com", []string{"b@example.com"}, snap, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	assert.Contains(t, msg, "Food: Food item")
	assert.NotContains(t, msg, "Grade:")
	assert.Contains(t, msg, "line one\r\nline two")
	assert.Contains(t, msg, "Date: Tue, 02 Jan 2024 03:04:05 +0000")
}
