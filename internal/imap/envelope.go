package imap

import (
	"fmt"
	"strings"
)

// BuildEnvelope renders an ENVELOPE response item from a raw message:
// (date subject from sender reply-to to cc bcc in-reply-to message-id).
func BuildEnvelope(rawMsg string) string {
	date := ExtractHeader(rawMsg, "Date")
	subject := ExtractHeader(rawMsg, "Subject")
	from := ExtractHeader(rawMsg, "From")
	sender := ExtractHeader(rawMsg, "Sender")
	replyTo := ExtractHeader(rawMsg, "Reply-To")
	to := ExtractHeader(rawMsg, "To")
	cc := ExtractHeader(rawMsg, "Cc")
	bcc := ExtractHeader(rawMsg, "Bcc")
	inReplyTo := ExtractHeader(rawMsg, "In-Reply-To")
	messageID := ExtractHeader(rawMsg, "Message-ID")

	// Sender and reply-to default to from.
	if sender == "" {
		sender = from
	}
	if replyTo == "" {
		replyTo = from
	}

	return fmt.Sprintf("ENVELOPE (%s %s %s %s %s %s %s %s %s %s)",
		quoteOrNIL(date),
		quoteOrNIL(subject),
		addressList(from),
		addressList(sender),
		addressList(replyTo),
		addressList(to),
		addressList(cc),
		addressList(bcc),
		quoteOrNIL(inReplyTo),
		quoteOrNIL(messageID),
	)
}

// ExtractHeader extracts a header value from a raw message, unfolding
// continuation lines.
func ExtractHeader(rawMsg, headerName string) string {
	prefix := strings.ToUpper(headerName) + ":"
	var value strings.Builder
	inHeader := false

	for _, line := range strings.Split(rawMsg, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			break // end of headers
		}
		if inHeader {
			if line[0] == ' ' || line[0] == '\t' {
				value.WriteString(" " + strings.TrimSpace(line))
				continue
			}
			break
		}
		if strings.HasPrefix(strings.ToUpper(line), prefix) {
			value.WriteString(strings.TrimSpace(line[len(prefix):]))
			inHeader = true
		}
	}
	return value.String()
}

func quoteOrNIL(str string) string {
	if str == "" {
		return "NIL"
	}
	str = strings.ReplaceAll(str, "\\", "\\\\")
	str = strings.ReplaceAll(str, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", str)
}

// addressList parses an address header into IMAP address list format:
// ((name route mailbox host) ...) or NIL. Route is always NIL.
func addressList(addresses string) string {
	if addresses == "" {
		return "NIL"
	}

	var structs []string
	for _, addr := range strings.Split(addresses, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}

		// "Name <local@host>" or bare "local@host".
		name := ""
		email := addr
		if start := strings.Index(addr, "<"); start >= 0 {
			if end := strings.Index(addr, ">"); end > start {
				name = strings.Trim(strings.TrimSpace(addr[:start]), "\"")
				email = addr[start+1 : end]
			}
		}

		mailbox, host := email, ""
		if i := strings.Index(email, "@"); i >= 0 {
			mailbox, host = email[:i], email[i+1:]
		}

		structs = append(structs, fmt.Sprintf("(%s NIL %s %s)",
			quoteOrNIL(name), quoteOrNIL(mailbox), quoteOrNIL(host)))
	}
	if len(structs) == 0 {
		return "NIL"
	}
	return "(" + strings.Join(structs, " ") + ")"
}
