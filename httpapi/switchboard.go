package httpapi

import (
	"context"
	"os"
	"sync"

	"github.com/keyforge/keyforge/forge/pipeline"
	"github.com/keyforge/keyforge/logging"
)

// filePayload is a delivered artifact, inlined into the response.
// Content marshals as base64.
type filePayload struct {
	Name    string `json:"name"`
	Caption string `json:"caption,omitempty"`
	Content []byte `json:"content"`
}

// collector gathers everything the pipeline sends for one in-flight
// message, so it can be returned in the HTTP response.
type collector struct {
	mu      sync.Mutex
	texts   []string
	files   []filePayload
	status  string
	deleted bool
}

func (c *collector) addText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
}

// Switchboard routes pipeline deliveries back to the HTTP handler
// that triggered them. It implements [pipeline.Messenger]; the chat
// is synchronous, so exactly one collector is attached per subject
// while its request runs.
type Switchboard struct {
	mu         sync.Mutex
	collectors map[string]*collector
}

func NewSwitchboard() *Switchboard {
	return &Switchboard{collectors: make(map[string]*collector, 16)}
}

func (s *Switchboard) attach(subject string) *collector {
	c := &collector{}
	s.mu.Lock()
	s.collectors[subject] = c
	s.mu.Unlock()
	return c
}

func (s *Switchboard) detach(subject string) {
	s.mu.Lock()
	delete(s.collectors, subject)
	s.mu.Unlock()
}

func (s *Switchboard) collectorFor(subject string) *collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectors[subject]
}

func (s *Switchboard) SendText(ctx context.Context, subject, text string) error {
	c := s.collectorFor(subject)
	if c == nil {
		logging.Warningf("httpapi: dropping text for unattached subject '%s'", subject)
		return nil
	}
	c.addText(text)
	return nil
}

func (s *Switchboard) SendFiles(ctx context.Context, subject string, files []pipeline.File) error {
	c := s.collectorFor(subject)
	if c == nil {
		logging.Warningf("httpapi: dropping files for unattached subject '%s'", subject)
		return nil
	}

	// snapshot immediately: ephemeral artifacts are removed right
	// after delivery
	payloads := make([]filePayload, 0, len(files))
	for _, fi := range files {
		content, err := os.ReadFile(fi.Path)
		if err != nil {
			return err
		}
		payloads = append(payloads, filePayload{Name: fi.Name, Caption: fi.Caption, Content: content})
	}

	c.mu.Lock()
	c.files = append(c.files, payloads...)
	c.mu.Unlock()
	return nil
}

type boardStatus struct {
	c *collector
}

func (b boardStatus) Update(ctx context.Context, text string) {
	b.c.mu.Lock()
	b.c.status = text
	b.c.mu.Unlock()
}

func (b boardStatus) Delete(ctx context.Context) {
	b.c.mu.Lock()
	b.c.status = ""
	b.c.deleted = true
	b.c.mu.Unlock()
}

func (s *Switchboard) BeginStatus(ctx context.Context, subject, text string) pipeline.Status {
	c := s.collectorFor(subject)
	if c == nil {
		logging.Warningf("httpapi: no collector for status of subject '%s'", subject)
		return pipeline.NopStatus{}
	}
	st := boardStatus{c: c}
	st.Update(ctx, text)
	return st
}
