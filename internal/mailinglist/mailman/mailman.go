// Package mailman implements the mailing-list transport against a
// Mailman/pipermail-style server: conversations are read from the monthly
// plain-text archives over HTTP, and messages are posted over SMTP.
package mailman

import (
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nick-arm/skara/internal/email"
	"github.com/nick-arm/skara/internal/mailinglist"
	logx "github.com/nick-arm/skara/pkg/logx"
)

// Server talks to one Mailman installation. It is safe for concurrent use;
// the post limiter is shared across all lists so the configured interval
// bounds the process's total submission rate.
type Server struct {
	archive  string
	smtpAddr string
	limiter  *rate.Limiter
	client   *http.Client
	log      logx.Logger
}

func NewServer(archive, smtpAddr string, interval time.Duration, log logx.Logger) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	return &Server{
		archive:  strings.TrimRight(archive, "/"),
		smtpAddr: smtpAddr,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// List accepts either a bare list name ("skara-dev") or the list's posting
// address ("skara-dev@openjdk.org").
func (s *Server) List(name string) mailinglist.List {
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return &list{srv: s, name: name}
}

type list struct {
	srv  *Server
	name string
}

func (l *list) Conversations(ctx context.Context, lookback time.Duration) ([]mailinglist.Conversation, error) {
	now := time.Now().UTC()
	start := now.Add(-lookback)

	var msgs []email.Message
	for month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !month.After(now); month = month.AddDate(0, 1, 0) {
		batch, err := l.fetchMonth(ctx, month)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, batch...)
	}

	var within []mailinglist.Conversation
	for _, conv := range threadConversations(msgs) {
		if !conv.First().Date.Before(start) {
			within = append(within, conv)
		}
	}
	return within, nil
}

// fetchMonth reads one pipermail monthly archive. A missing month is normal
// (quiet lists, or the window predating the list) and yields no messages.
func (l *list) fetchMonth(ctx context.Context, month time.Time) ([]email.Message, error) {
	url := fmt.Sprintf("%s/%s/%04d-%s.txt", l.srv.archive, l.name, month.Year(), month.Month())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.srv.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching archive %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return parseMbox(resp.Body), nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("fetching archive %s: unexpected status %s", url, resp.Status)
	}
}

func (l *list) Post(ctx context.Context, e email.Email) error {
	if err := l.srv.limiter.Wait(ctx); err != nil {
		return err
	}
	l.srv.log.Debug("posting to list",
		logx.String("list", l.name),
		logx.String("subject", e.Subject),
		logx.String("message_id", e.ID))
	if err := smtp.SendMail(l.srv.smtpAddr, nil, e.Sender.Address, []string{e.Recipient.Address}, e.Encode()); err != nil {
		return fmt.Errorf("smtp submission to %s: %w", l.name, err)
	}
	return nil
}
