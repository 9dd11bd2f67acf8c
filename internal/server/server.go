package server

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"kestrel/internal/imap"
)

// IMAPServer is the network transport in front of the session engine: it
// reads command lines, hands decoded commands to the engine, and writes the
// engine's response lines back, flushing buffered unsolicited responses
// before every tagged reply.
type IMAPServer struct {
	engine *imap.Engine
}

func NewIMAPServer(engine *imap.Engine) *IMAPServer {
	return &IMAPServer{engine: engine}
}

// Engine returns the wrapped session engine (exported for tests).
func (s *IMAPServer) Engine() *imap.Engine {
	return s.engine
}

// HandleConnection drives one client connection until logout or error.
func (s *IMAPServer) HandleConnection(conn net.Conn) {
	defer conn.Close()

	sess := s.engine.NewSession(conn.RemoteAddr().String())
	// Deregister from the listener set before the session object is
	// dropped, otherwise other sessions keep queueing events into it.
	defer sess.Close()

	s.sendResponse(conn, "* OK [CAPABILITY IMAP4rev1 UIDPLUS UNSELECT LITERAL+ NAMESPACE] Kestrel IMAP server ready")

	s.serve(conn, sess)
}

func (s *IMAPServer) serve(conn net.Conn, sess *imap.Session) {
	reader := bufio.NewReader(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Minute))

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		log.Printf("Client: %s", line)

		parts := splitFields(line)
		if len(parts) < 2 {
			s.sendResponse(conn, "* BAD Invalid command format")
			continue
		}

		cmd := &imap.Command{
			Tag:  parts[0],
			Name: strings.ToUpper(parts[1]),
			Args: parts[2:],
		}

		// APPEND carries the message as a literal after the command line.
		if cmd.Name == "APPEND" && len(cmd.Args) > 0 && isLiteralSpec(cmd.Args[len(cmd.Args)-1]) {
			literal, err := s.readLiteral(reader, conn, cmd.Args[len(cmd.Args)-1])
			if err != nil {
				s.sendResponse(conn, fmt.Sprintf("%s BAD %v", cmd.Tag, err))
				continue
			}
			cmd.Args = cmd.Args[:len(cmd.Args)-1]
			cmd.Literal = literal
		}

		resp := s.engine.Process(sess, cmd)

		for _, l := range resp.Untagged {
			s.sendResponse(conn, l)
		}
		// Buffered events from other sessions go out before the tagged
		// line, per RFC 3501 section 5.2.
		for _, l := range sess.FlushUnsolicited() {
			s.sendResponse(conn, l)
		}
		s.sendResponse(conn, resp.TaggedLine(cmd.Tag))

		if resp.Close {
			return
		}
	}
}

const maxLiteralSize = 64 << 20

// readLiteral handles the {n} / {n+} literal syntax: send the continuation
// request (unless LITERAL+ non-synchronizing form), then read exactly n
// octets followed by the line terminator.
func (s *IMAPServer) readLiteral(reader *bufio.Reader, conn net.Conn, spec string) ([]byte, error) {
	inner := strings.Trim(spec, "{}")
	nonSync := strings.HasSuffix(inner, "+")
	inner = strings.TrimSuffix(inner, "+")

	size, err := strconv.Atoi(inner)
	if err != nil || size < 0 {
		return nil, fmt.Errorf("invalid literal size %q", spec)
	}
	if size > maxLiteralSize {
		return nil, fmt.Errorf("literal too large")
	}

	if !nonSync {
		s.sendResponse(conn, "+ Ready for literal data")
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("failed to read literal: %v", err)
	}
	// Consume the CRLF that ends the command line after the literal.
	if _, err := reader.ReadString('\n'); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read literal terminator: %v", err)
	}

	return data, nil
}

func isLiteralSpec(arg string) bool {
	return strings.HasPrefix(arg, "{") && strings.HasSuffix(arg, "}")
}

// SendResponse writes a single response line to the client (exported for tests).
func (s *IMAPServer) SendResponse(conn net.Conn, response string) {
	s.sendResponse(conn, response)
}

func (s *IMAPServer) sendResponse(conn net.Conn, response string) {
	log.Printf("Server: %s", sanitizeResponseForLogging(response))
	conn.Write([]byte(response + "\r\n"))
}

// sanitizeResponseForLogging masks message bodies so FETCH responses do not
// flood the log.
func sanitizeResponseForLogging(response string) string {
	if strings.Contains(response, "FETCH (") && strings.Contains(response, "BODY") {
		if idx := strings.Index(response, "{"); idx != -1 {
			if closeIdx := strings.Index(response[idx:], "}"); closeIdx != -1 {
				closeIdx += idx
				sizeStr := response[idx+1 : closeIdx]
				if size, err := strconv.Atoi(sizeStr); err == nil && size > 100 {
					return response[:closeIdx+1] + " [MESSAGE CONTENT OMITTED - " + sizeStr + " bytes]"
				}
			}
		}
	}
	if len(response) > 2000 {
		return response[:2000] + fmt.Sprintf("... [TRUNCATED - %d total bytes]", len(response))
	}
	return response
}

// splitFields splits a command line on whitespace while keeping quoted
// strings together, so `SELECT "My Folder"` yields two fields.
func splitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case (c == ' ' || c == '\t') && !inQuote:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}
