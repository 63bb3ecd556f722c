package mailman

import (
	"bufio"
	"io"
	"net/mail"
	"sort"
	"strings"

	"github.com/nick-arm/skara/internal/email"
	"github.com/nick-arm/skara/internal/mailinglist"
)

// parseMbox splits an mbox stream into messages. Messages the parser cannot
// make sense of are skipped; a partially readable archive is more useful
// than none.
func parseMbox(r io.Reader) []email.Message {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var msgs []email.Message
	var chunk strings.Builder
	flush := func() {
		if chunk.Len() == 0 {
			return
		}
		if m, ok := parseMessage(chunk.String()); ok {
			msgs = append(msgs, m)
		}
		chunk.Reset()
	}

	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "From ") {
			flush()
			continue
		}
		// mboxrd escaping of body lines starting with "From ".
		if strings.HasPrefix(line, ">") && strings.HasPrefix(strings.TrimLeft(line, ">"), "From ") {
			line = line[1:]
		}
		chunk.WriteString(line)
		chunk.WriteString("\n")
	}
	flush()
	return msgs
}

func parseMessage(raw string) (email.Message, bool) {
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return email.Message{}, false
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return email.Message{}, false
	}

	m := email.Message{
		ID:      strings.TrimSpace(msg.Header.Get("Message-Id")),
		Subject: msg.Header.Get("Subject"),
		Body:    string(body),
	}
	if m.ID == "" {
		return email.Message{}, false
	}
	if date, err := msg.Header.Date(); err == nil {
		m.Date = date
	}
	if from, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		m.Author = email.Address{Name: from.Name, Address: from.Address}
	}

	m.References = strings.Fields(msg.Header.Get("References"))
	if irt := strings.TrimSpace(msg.Header.Get("In-Reply-To")); irt != "" {
		if n := len(m.References); n == 0 || m.References[n-1] != irt {
			m.References = append(m.References, irt)
		}
	}
	return m, true
}

// threadConversations groups messages into threads by walking each message's
// reference chain, newest ancestor first. A message with no known ancestor
// roots a new conversation.
func threadConversations(msgs []email.Message) []mailinglist.Conversation {
	sorted := append([]email.Message(nil), msgs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var convs []mailinglist.Conversation
	index := map[string]int{}

	for _, m := range sorted {
		placed := false
		for i := len(m.References) - 1; i >= 0; i-- {
			if ci, ok := index[m.References[i]]; ok {
				convs[ci].Messages = append(convs[ci].Messages, m)
				index[m.ID] = ci
				placed = true
				break
			}
		}
		if !placed {
			convs = append(convs, mailinglist.Conversation{Messages: []email.Message{m}})
			index[m.ID] = len(convs) - 1
		}
	}
	return convs
}
