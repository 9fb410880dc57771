// Request assembly across multiple inbound messages.
//
// A single message rarely carries a complete generation request: an
// uploaded keystore may miss its alias and password, a package name
// may collide with an existing project. The machine keeps one pending
// record per conversation subject and walks it through
//
//	Idle -> AwaitingAlias -> AwaitingPassword -> (Idle)
//
// plus an AwaitingReuseChoice branch for fresh-name requests that
// target an already complete project. Blank input while awaiting a
// field re-prompts without a transition; unrelated text is treated as
// the awaited field, never as a new request. Pending records live in
// an explicit keyed store and are consumed the moment a request
// completes.
package session

import (
	"strings"
	"sync"

	"github.com/keyforge/keyforge/forge/pipeline"
	"github.com/keyforge/keyforge/logging"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingAlias
	StateAwaitingPassword
	StateAwaitingReuseChoice
)

// Prompts and notices sent back while assembling a request.
const (
	PromptAlias         = "Send the alias (caption line 1)."
	PromptPassword      = "Send the password (caption line 2)."
	PromptAliasAgain    = "An alias is required. " + PromptAlias
	PromptPasswordAgain = "A password is required. " + PromptPassword
	PromptPackageName   = "Send a non-empty package name."
	PromptReuseChoice   = "A key for this package already exists.\n" +
		"1 - reuse the existing key\n" +
		"2 - generate a new one"
	PromptReuseChoiceAgain = "Please answer 1 (reuse) or 2 (new)."
)

// reuse-choice matching policy: exact tokens, case-insensitive
var reuseTokens = map[string]bool{
	"1": true, "reuse": true, "old": true, "keep": true,
}
var regenerateTokens = map[string]bool{
	"2": true, "new": true, "regenerate": true,
}

// Outcome of feeding one message into the machine. Either Reply holds
// a prompt to send back, or Request holds a completed request ready
// for the pipeline. Never both.
type Outcome struct {
	Reply   string
	Request *pipeline.Request
}

func prompt(text string) Outcome {
	return Outcome{Reply: text}
}

func complete(req *pipeline.Request) Outcome {
	return Outcome{Request: req}
}

type pending struct {
	state       State
	packageName string
	upload      *pipeline.Upload
	alias       string
	password    string
}

// ExistsFunc probes whether a complete artifact set already exists
// for the given raw package name.
type ExistsFunc func(packageName string) bool

// Machine assembles requests per conversation subject. Safe for
// concurrent use; subjects never see each other's pending state.
type Machine struct {
	mu      sync.Mutex
	pending map[string]*pending
	exists  ExistsFunc
}

// NewMachine creates a machine using the given existence probe. A nil
// probe disables the reuse branch entirely.
func NewMachine(exists ExistsFunc) *Machine {
	if exists == nil {
		exists = func(string) bool { return false }
	}
	return &Machine{
		pending: make(map[string]*pending, 16),
		exists:  exists,
	}
}

// State reports the current state for a subject.
func (m *Machine) State(subject string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[subject]
	if !ok {
		return StateIdle
	}
	return p.state
}

// Reset drops any pending request for the subject.
func (m *Machine) Reset(subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, subject)
}

// ParseCaption extracts alias and password from an upload caption:
// first non-blank line is the alias, second is the password.
func ParseCaption(caption string) (alias, password string) {
	lines := make([]string, 0, 2)
	for _, line := range strings.Split(caption, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 0 {
			lines = append(lines, line)
		}
		if len(lines) == 2 {
			break
		}
	}

	if len(lines) >= 1 {
		alias = lines[0]
	}
	if len(lines) >= 2 {
		password = lines[1]
	}
	return alias, password
}

// HandleUpload feeds an uploaded keystore into the machine. A caption
// carrying both alias and password completes the request in one step;
// otherwise the machine starts prompting for the missing fields. An
// upload always replaces whatever was pending for the subject.
func (m *Machine) HandleUpload(subject string, upload pipeline.Upload, caption string) Outcome {
	alias, password := ParseCaption(caption)

	m.mu.Lock()
	defer m.mu.Unlock()

	if alias == "" {
		m.pending[subject] = &pending{state: StateAwaitingAlias, upload: &upload}
		return prompt(PromptAlias)
	}
	if password == "" {
		m.pending[subject] = &pending{state: StateAwaitingPassword, upload: &upload, alias: alias}
		return prompt(PromptPassword)
	}

	delete(m.pending, subject)
	return complete(&pipeline.Request{
		Subject:  subject,
		Upload:   &upload,
		Alias:    alias,
		Password: password,
	})
}

// HandleText feeds a text message into the machine. While a request is
// pending, the text fills the awaited field; otherwise it is taken as
// a fresh package name.
func (m *Machine) HandleText(subject, text string) Outcome {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[subject]
	if !ok {
		return m.handlePackageName(subject, text)
	}

	switch p.state {
	case StateAwaitingAlias:
		if text == "" {
			return prompt(PromptAliasAgain)
		}
		p.alias = text
		p.state = StateAwaitingPassword
		return prompt(PromptPassword)

	case StateAwaitingPassword:
		if text == "" {
			return prompt(PromptPasswordAgain)
		}
		p.password = text
		delete(m.pending, subject)
		return complete(&pipeline.Request{
			Subject:  subject,
			Upload:   p.upload,
			Alias:    p.alias,
			Password: p.password,
		})

	case StateAwaitingReuseChoice:
		choice := strings.ToLower(text)
		switch {
		case reuseTokens[choice]:
			delete(m.pending, subject)
			return complete(&pipeline.Request{
				Subject:     subject,
				PackageName: p.packageName,
				UseExisting: true,
			})
		case regenerateTokens[choice]:
			delete(m.pending, subject)
			return complete(&pipeline.Request{
				Subject:     subject,
				PackageName: p.packageName,
			})
		default:
			return prompt(PromptReuseChoiceAgain)
		}
	}

	// unreachable: pending records always carry an awaiting state
	logging.Errorf("session: subject '%s' has pending record in state %d", subject, p.state)
	delete(m.pending, subject)
	return prompt(PromptPackageName)
}

func (m *Machine) handlePackageName(subject, name string) Outcome {
	if name == "" {
		return prompt(PromptPackageName)
	}

	if m.exists(name) {
		m.pending[subject] = &pending{state: StateAwaitingReuseChoice, packageName: name}
		return prompt(PromptReuseChoice)
	}

	return complete(&pipeline.Request{
		Subject:     subject,
		PackageName: name,
	})
}
