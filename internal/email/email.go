// Package email models the messages the notifier sends and receives:
// addresses, archived list messages, and outbound emails with reply
// threading.
package email

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one archived mailing-list message, as read back from the list
// transport. References holds ancestor message IDs, oldest first.
type Message struct {
	ID         string
	Subject    string
	Body       string
	Author     Address
	Date       time.Time
	References []string
}

// Email is an immutable outbound message. Author is the identity the message
// is presented as being from; Sender is the channel identity actually
// submitting it. ID is a full RFC 5322 msg-id including angle brackets.
type Email struct {
	ID         string
	Subject    string
	Body       string
	Author     Address
	Sender     Address
	Recipient  Address
	Headers    map[string]string
	InReplyTo  string
	References []string
	Date       time.Time
}

// Builder assembles an Email. Build() is the only way to obtain one, so a
// constructed Email is never half-initialized.
type Builder struct {
	e Email
}

// New starts a new-thread email.
func New(subject, body string) *Builder {
	return &Builder{e: Email{Subject: subject, Body: body}}
}

// Reply starts an email threaded under parent: In-Reply-To points at the
// parent and References extends the parent's chain.
func Reply(parent Message, subject, body string) *Builder {
	refs := append(append([]string(nil), parent.References...), parent.ID)
	return &Builder{e: Email{
		Subject:    subject,
		Body:       body,
		InReplyTo:  parent.ID,
		References: refs,
	}}
}

func (b *Builder) Author(a Address) *Builder    { b.e.Author = a; return b }
func (b *Builder) Sender(a Address) *Builder    { b.e.Sender = a; return b }
func (b *Builder) Recipient(a Address) *Builder { b.e.Recipient = a; return b }

// Headers replaces the custom header set. The map is copied.
func (b *Builder) Headers(h map[string]string) *Builder {
	if len(h) == 0 {
		b.e.Headers = nil
		return b
	}
	cp := make(map[string]string, len(h))
	for k, v := range h {
		cp[k] = v
	}
	b.e.Headers = cp
	return b
}

func (b *Builder) Build() Email {
	e := b.e
	if e.ID == "" {
		domain := e.Sender.Domain()
		if domain == "" {
			domain = "localhost"
		}
		e.ID = fmt.Sprintf("<%s@%s>", uuid.New(), domain)
	}
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	return e
}

// Encode renders the email in wire form (CRLF line endings, headers then
// blank line then body), suitable for SMTP submission.
func (e Email) Encode() []byte {
	var b strings.Builder

	write := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	write("Message-Id", e.ID)
	write("Date", e.Date.Format(time.RFC1123Z))
	write("Subject", e.Subject)
	write("From", e.Author.String())
	if e.Sender.Address != e.Author.Address {
		write("Sender", e.Sender.String())
	}
	write("To", e.Recipient.String())
	if e.InReplyTo != "" {
		write("In-Reply-To", e.InReplyTo)
	}
	if len(e.References) > 0 {
		write("References", strings.Join(e.References, " "))
	}
	write("MIME-Version", "1.0")
	write("Content-Type", `text/plain; charset="utf-8"`)

	// Custom headers in a stable order.
	keys := make([]string, 0, len(e.Headers))
	for k := range e.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k, e.Headers[k])
	}

	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(e.Body, "\n", "\r\n"))
	return []byte(b.String())
}
