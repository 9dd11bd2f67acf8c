package imap

import (
	"errors"
	"log"
	"strings"
)

// Engine processes decoded commands against session state. It owns no
// per-connection state itself and is shared by all connections; the
// transport layer calls Process once per decoded command and
// Session.FlushUnsolicited before every tagged response.
type Engine struct {
	store     Store
	registry  *Registry
	directory Directory
}

func NewEngine(store Store, registry *Registry, directory Directory) *Engine {
	return &Engine{store: store, registry: registry, directory: directory}
}

// Registry exposes the mailbox registry, e.g. for delivery-side broadcasts.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// NewSession creates a session bound to this engine's registry.
func (e *Engine) NewSession(remoteAddr string) *Session {
	return NewSession(e.registry, remoteAddr)
}

// Process validates the command against the session's state machine and
// runs it. Illegal or malformed commands produce a BAD/NO response without
// mutating state; only store or dispatcher activity inside a legal handler
// changes anything.
func (e *Engine) Process(s *Session, cmd *Command) *Response {
	if s.state == StateLogout {
		return respBad("Session is logged out")
	}

	// A mailbox deleted underneath us surfaces on the next command,
	// whatever it is, and drops the session back to authenticated state.
	if s.takeGone() {
		name := ""
		if s.selected != nil {
			name = s.selected.ID().Name
		}
		s.detach()
		log.Printf("Session %s: selected mailbox %q disappeared", s.RemoteAddr, name)
		return respNoCode("NONEXISTENT", "Mailbox is no longer selected")
	}

	name := strings.ToUpper(cmd.Name)
	def, ok := commands[name]
	if !ok {
		return respBad("Unknown command: " + name)
	}

	if !def.states.includes(s.state) {
		switch {
		case s.state == StateNotAuthenticated:
			return respNo("Please authenticate first")
		case def.states == inSelected && s.state == StateAuthenticated:
			return respNo("No mailbox selected")
		default:
			return respBad(name + " not allowed in " + s.state.String() + " state")
		}
	}

	return def.handler(e, s, cmd)
}

// handleUID rewrites the addressing mode of the wrapped command: argument
// ranges become UID ranges and result identifiers are reported as UIDs.
// Capability is resolved from the command table; wrapping anything not
// flagged uidable is a protocol error (e.g. UID LOGIN).
func (e *Engine) handleUID(s *Session, cmd *Command) *Response {
	if len(cmd.Args) < 1 {
		return respBad("UID requires a sub-command")
	}

	sub := strings.ToUpper(cmd.Args[0])
	def, ok := commands[sub]
	if !ok || !def.uidable {
		return respBad("Command cannot be combined with UID: " + sub)
	}

	wrapped := &Command{
		Tag:     cmd.Tag,
		Name:    sub,
		Args:    cmd.Args[1:],
		Literal: cmd.Literal,
		UID:     true,
	}
	return def.handler(e, s, wrapped)
}

// errorResponse maps the error taxonomy onto tagged responses.
func errorResponse(err error) *Response {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return respBad(pe.Msg)
	}
	var ae *AccessError
	if errors.As(err, &ae) {
		// Deliberately indistinguishable from a missing mailbox.
		return respNoCode("TRYCREATE", "Mailbox does not exist")
	}
	var ce *ConcurrencyError
	if errors.As(err, &ce) {
		return respNo("Transient server error, please retry")
	}
	var ge *MailboxGoneError
	if errors.As(err, &ge) {
		return respNoCode("NONEXISTENT", "Mailbox is no longer selected")
	}
	return respNo("Server error: " + err.Error())
}
