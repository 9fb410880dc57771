// HTTP chat transport for the artifact pipeline.
//
// The API mirrors a messaging conversation: each chat subject posts
// text messages or keystore uploads and receives prompts, status and
// delivered artifacts in the response of the triggering request.
// Artifacts of persisted projects can also be fetched directly.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keyforge/keyforge/forge/pipeline"
	"github.com/keyforge/keyforge/forge/session"
	"github.com/keyforge/keyforge/forge/store"
	"github.com/keyforge/keyforge/logging"
)

const maxUploadBytes = 32 << 20

// HelpText explains the two request flavors. %s/%s are the default
// alias and password.
const helpTemplate = `Send a package name as text to generate a new JKS and PEM.
Or upload a JKS/keystore file with a caption:
line 1: alias
line 2: password (store + key)
Defaults: alias=%s, password=%s
Send /reset to abandon a pending request.`

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Replies []string      `json:"replies,omitempty"`
	Status  string        `json:"status,omitempty"`
	Files   []filePayload `json:"files,omitempty"`
}

// Server wires the session machine, the pipeline and the switchboard
// into a chi router.
type Server struct {
	machine  *session.Machine
	pipe     *pipeline.Pipeline
	board    *Switchboard
	helpText string
	router   chi.Router
}

// New builds the HTTP server. The switchboard must be the messenger
// the pipeline was constructed with.
func New(machine *session.Machine, pipe *pipeline.Pipeline, board *Switchboard, defaultAlias, defaultPassword string) *Server {
	s := &Server{
		machine:  machine,
		pipe:     pipe,
		board:    board,
		helpText: fmt.Sprintf(helpTemplate, defaultAlias, defaultPassword),
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chats/{subject}/messages", s.handleMessage)
		r.Post("/chats/{subject}/files", s.handleUpload)
		r.Get("/projects/{name}/artifacts/{file}", s.handleArtifact)
	})
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Errorf("httpapi: can't encode response: %v", err)
	}
}

func reply(w http.ResponseWriter, texts ...string) {
	writeJSON(w, http.StatusOK, messageResponse{Replies: texts})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func requesterInfo(r *http.Request) store.RequesterInfo {
	return store.RequesterInfo{
		UserID:      r.Header.Get("X-User-Id"),
		Username:    r.Header.Get("X-Username"),
		FullName:    r.Header.Get("X-Full-Name"),
		RequestedAt: time.Now().UTC(),
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	var msg messageRequest
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid message body", http.StatusBadRequest)
		return
	}

	switch msg.Text {
	case "/start", "/help":
		reply(w, s.helpText)
		return
	case "/status":
		reply(w, "OK")
		return
	case "/reset":
		s.machine.Reset(subject)
		reply(w, "Pending request cleared.")
		return
	}

	s.dispatch(w, r, subject, s.machine.HandleText(subject, msg.Text))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	fi, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer fi.Close()

	content, err := io.ReadAll(fi)
	if err != nil {
		http.Error(w, "can't read upload", http.StatusBadRequest)
		return
	}

	filename := header.Filename
	if len(filename) == 0 {
		filename = "keystore.jks"
	}

	upload := pipeline.Upload{Filename: filename, Content: content}
	s.dispatch(w, r, subject, s.machine.HandleUpload(subject, upload, r.FormValue("caption")))
}

// dispatch either returns the machine's prompt or runs the completed
// request through the pipeline and renders what it delivered.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, subject string, out session.Outcome) {
	if out.Request == nil {
		reply(w, out.Reply)
		return
	}

	req := *out.Request
	req.Requester = requesterInfo(r)

	c := s.board.attach(subject)
	defer s.board.detach(subject)

	if err := s.pipe.Run(r.Context(), req); err != nil {
		logging.Errorf("httpapi: request for subject '%s' failed: %v", subject, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	writeJSON(w, http.StatusOK, messageResponse{
		Replies: c.texts,
		Status:  c.status,
		Files:   c.files,
	})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	base := store.Sanitize(chi.URLParam(r, "name"))
	file := chi.URLParam(r, "file")

	proj := s.pipe.Store().Project(base)
	allowed := map[string]string{
		path.Base(proj.Keystore):    proj.Keystore,
		path.Base(proj.Certificate): proj.Certificate,
		path.Base(proj.Summary):     proj.Summary,
	}

	name, ok := allowed[file]
	if !ok {
		http.Error(w, "unknown artifact", http.StatusNotFound)
		return
	}

	content, err := s.pipe.Store().ReadFile(name)
	if err != nil {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file))
	w.Write(content)
}
