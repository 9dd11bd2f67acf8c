package imap

import "fmt"

// Command is one decoded client command as handed over by the transport
// layer. Args are the raw fields after the command name; for APPEND the
// transport has already read the message literal.
type Command struct {
	Tag     string
	Name    string // canonical upper-case
	Args    []string
	Literal []byte
	UID     bool // reached through the UID prefix: ranges and results are UIDs
}

// Status of a tagged response.
type Status string

const (
	StatusOK  Status = "OK"
	StatusNo  Status = "NO"
	StatusBad Status = "BAD"
)

// Response is the descriptor the engine returns per command: untagged lines
// followed by one tagged status line. The transport renders unsolicited
// responses separately, just before the tagged line.
type Response struct {
	Untagged []string
	Status   Status
	Code     string // optional response code, e.g. TRYCREATE
	Text     string
	Close    bool // connection should be closed after writing (LOGOUT)
}

// TaggedLine renders the final line of the response.
func (r *Response) TaggedLine(tag string) string {
	if r.Code != "" {
		return fmt.Sprintf("%s %s [%s] %s", tag, r.Status, r.Code, r.Text)
	}
	return fmt.Sprintf("%s %s %s", tag, r.Status, r.Text)
}

func respOK(text string) *Response {
	return &Response{Status: StatusOK, Text: text}
}

func respOKCode(code, text string) *Response {
	return &Response{Status: StatusOK, Code: code, Text: text}
}

func respNo(text string) *Response {
	return &Response{Status: StatusNo, Text: text}
}

func respNoCode(code, text string) *Response {
	return &Response{Status: StatusNo, Code: code, Text: text}
}

func respBad(text string) *Response {
	return &Response{Status: StatusBad, Text: text}
}

// stateSet is the set of session states a command is legal in.
type stateSet uint8

const (
	inNotAuthenticated stateSet = 1 << iota
	inAuthenticated
	inSelected
)

const (
	anyState      = inNotAuthenticated | inAuthenticated | inSelected
	authenticated = inAuthenticated | inSelected
)

func (ss stateSet) includes(s State) bool {
	switch s {
	case StateNotAuthenticated:
		return ss&inNotAuthenticated != 0
	case StateAuthenticated:
		return ss&inAuthenticated != 0
	case StateSelected:
		return ss&inSelected != 0
	}
	return false
}

type handlerFunc func(e *Engine, s *Session, cmd *Command) *Response

// commandDef declares where a command is legal and whether it supports UID
// addressing. The UID dispatcher resolves capability by table lookup; a
// wrapped command without the flag (UID LOGIN, UID EXPUNGE aside) is a
// protocol error.
type commandDef struct {
	states  stateSet
	uidable bool
	handler handlerFunc
}

var commands = map[string]commandDef{
	"CAPABILITY": {states: anyState, handler: (*Engine).handleCapability},
	"NOOP":       {states: anyState, handler: (*Engine).handleNoop},
	"LOGOUT":     {states: anyState, handler: (*Engine).handleLogout},

	"LOGIN": {states: inNotAuthenticated, handler: (*Engine).handleLogin},

	"SELECT":      {states: authenticated, handler: (*Engine).handleSelect},
	"EXAMINE":     {states: authenticated, handler: (*Engine).handleSelect},
	"CREATE":      {states: authenticated, handler: (*Engine).handleCreate},
	"DELETE":      {states: authenticated, handler: (*Engine).handleDelete},
	"RENAME":      {states: authenticated, handler: (*Engine).handleRename},
	"LIST":        {states: authenticated, handler: (*Engine).handleList},
	"LSUB":        {states: authenticated, handler: (*Engine).handleLsub},
	"SUBSCRIBE":   {states: authenticated, handler: (*Engine).handleSubscribe},
	"UNSUBSCRIBE": {states: authenticated, handler: (*Engine).handleUnsubscribe},
	"STATUS":      {states: authenticated, handler: (*Engine).handleStatus},
	"APPEND":      {states: authenticated, handler: (*Engine).handleAppend},
	"NAMESPACE":   {states: authenticated, handler: (*Engine).handleNamespace},

	"CHECK":    {states: inSelected, handler: (*Engine).handleCheck},
	"CLOSE":    {states: inSelected, handler: (*Engine).handleClose},
	"UNSELECT": {states: inSelected, handler: (*Engine).handleUnselect},
	"EXPUNGE":  {states: inSelected, uidable: true, handler: (*Engine).handleExpunge},
	"FETCH":    {states: inSelected, uidable: true, handler: (*Engine).handleFetch},
	"STORE":    {states: inSelected, uidable: true, handler: (*Engine).handleStore},
	"COPY":     {states: inSelected, uidable: true, handler: (*Engine).handleCopy},
	"SEARCH":   {states: inSelected, uidable: true, handler: (*Engine).handleSearch},
}

// handleUID resolves its sub-command through the table, so registering it in
// the composite literal above would make the map's initializer refer to
// itself. Registered here instead.
func init() {
	commands["UID"] = commandDef{states: inSelected, handler: (*Engine).handleUID}
}
