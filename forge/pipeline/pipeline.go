// Orchestration of the artifact-generation pipeline.
//
// A completed request runs through: archive the superseded set,
// generate or ingest the keystore, export the certificate, resolve
// the identity, persist the summary and requester metadata, deliver.
// Every external-tool failure is terminal for the request and mapped
// to a user-facing outcome; earlier archives are never touched again,
// so a failed regeneration leaves the old artifacts safely in the
// superseded area.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/keyforge/keyforge/forge/dname"
	"github.com/keyforge/keyforge/forge/keytool"
	"github.com/keyforge/keyforge/forge/store"
	"github.com/keyforge/keyforge/logging"
)

// ErrNoInput indicates a request carrying neither a package name nor
// an upload. Rejected before any external invocation.
var ErrNoInput = errors.New("pipeline: no input data")

// Toolchain is the injected capability over the external key tooling.
// *keytool.Tool implements it; tests substitute canned behavior.
type Toolchain interface {
	GenerateKeyPair(ctx context.Context, keystorePath, alias, password, dn string) error
	ExportCertificate(ctx context.Context, keystorePath, alias, password, outPath string) error
	ReadIdentity(ctx context.Context, keystorePath, alias, password string) (dname.Identity, error)
}

// IdentitySource produces random identities for fresh keystores.
type IdentitySource interface {
	Synthesize() dname.Identity
}

// Options hold the request-independent pipeline knobs.
type Options struct {
	DefaultAlias    string
	DefaultPassword string

	// PersistArtifacts keeps project directories around and enables
	// the archive/reuse machinery. When false every request works in
	// a private temp directory that is removed after delivery.
	PersistArtifacts bool
}

// Pipeline wires the collaborators together.
type Pipeline struct {
	store     *store.Store
	tool      Toolchain
	synth     IdentitySource
	messenger Messenger
	opts      Options
}

// New assembles a pipeline. The store is also used for per-project
// locking, so it must be shared with anything probing for existing
// artifacts.
func New(st *store.Store, tool Toolchain, synth IdentitySource, messenger Messenger, opts Options) *Pipeline {
	if len(opts.DefaultAlias) == 0 {
		opts.DefaultAlias = "key0"
	}
	if len(opts.DefaultPassword) == 0 {
		opts.DefaultPassword = "1234567890"
	}
	return &Pipeline{
		store:     st,
		tool:      tool,
		synth:     synth,
		messenger: messenger,
		opts:      opts,
	}
}

// Store exposes the artifact store, e.g. for session existence probes.
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// Exists reports whether a complete artifact set is present for the
// raw package name. Always false in the ephemeral profile.
func (p *Pipeline) Exists(packageName string) bool {
	if !p.opts.PersistArtifacts {
		return false
	}
	return p.store.Complete(store.Sanitize(packageName))
}

// UserMessage maps a pipeline error onto the text reported to the
// requester.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, keytool.ErrToolMissing):
		return "System error: keytool was not found. Install OpenJDK."
	case errors.Is(err, keytool.ErrToolTimedOut):
		return "The key tooling took too long and was aborted. Try again later."
	case errors.Is(err, keytool.ErrToolFailed):
		return "Could not process the keystore. Check the alias/password, the file type or the keystore password."
	case errors.Is(err, ErrNoInput):
		return "No input data."
	default:
		return "Unexpected error. Try again later."
	}
}

// baseName derives the sanitized project name from the request.
func baseName(req Request) string {
	if len(req.PackageName) > 0 {
		return store.Sanitize(req.PackageName)
	}
	stem := strings.TrimSuffix(req.Upload.Filename, path.Ext(req.Upload.Filename))
	return store.Sanitize(stem)
}

// Run processes one completed request end to end. The returned error
// has already been reported to the requester through the status
// notification; callers only need it for logging and tests.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	if len(req.PackageName) == 0 && req.Upload == nil {
		if err := p.messenger.SendText(ctx, req.Subject, UserMessage(ErrNoInput)); err != nil {
			logging.Errorf("can't report missing input: %v", err)
		}
		return ErrNoInput
	}

	status := p.messenger.BeginStatus(ctx, req.Subject, "Generating, please wait...")

	err := p.run(ctx, status, req)
	if err != nil {
		logging.Errorf("request for subject '%s' failed: %v", req.Subject, err)
		status.Update(ctx, UserMessage(err))
		return err
	}

	status.Delete(ctx)
	return nil
}

func (p *Pipeline) run(ctx context.Context, status Status, req Request) error {
	alias := req.Alias
	if len(alias) == 0 {
		alias = p.opts.DefaultAlias
	}
	password := req.Password
	if len(password) == 0 {
		password = p.opts.DefaultPassword
	}

	base := baseName(req)
	fresh := len(req.PackageName) > 0
	useExisting := fresh && req.UseExisting && p.opts.PersistArtifacts

	// requests for the same project are serialized; the archive-then-
	// write sequence must never interleave
	unlock := p.store.Lock(base)
	defer unlock()

	st := p.store
	if !p.opts.PersistArtifacts {
		tmp, err := os.MkdirTemp("", "keyforge_")
		if err != nil {
			return fmt.Errorf("pipeline: can't create work dir: %v", err)
		}
		defer os.RemoveAll(tmp)
		st = store.New(store.NewNativeFs(tmp), "generated", "generated_old")
		useExisting = false
	}

	proj := st.Project(base)

	if useExisting {
		status.Update(ctx, "Preparing the existing files...")
		if !st.Complete(base) {
			logging.Warningf("reuse requested for '%s' but artifacts are missing, regenerating", base)
			if err := p.messenger.SendText(ctx, req.Subject, "Existing files not found, generating a new key."); err != nil {
				logging.Errorf("can't send reuse fallback notice: %v", err)
			}
			useExisting = false
		}
	}

	var identity dname.Identity
	identityKnown := false

	switch {
	case fresh && !useExisting:
		status.Update(ctx, "Generating a new key...")
		if err := p.prepareProjectDir(st, base); err != nil {
			return err
		}

		identity = p.synth.Synthesize()
		identityKnown = true

		err := p.tool.GenerateKeyPair(ctx,
			st.ExternalPath(proj.Keystore), alias, password, dname.Encode(identity))
		if err != nil {
			return err
		}

		err = p.tool.ExportCertificate(ctx,
			st.ExternalPath(proj.Keystore), alias, password, st.ExternalPath(proj.Certificate))
		if err != nil {
			return err
		}

	case !fresh:
		status.Update(ctx, "Processing the uploaded keystore...")
		if err := p.prepareProjectDir(st, base); err != nil {
			return err
		}

		if err := st.WriteKeystore(base, req.Upload.Content); err != nil {
			return err
		}

		err := p.tool.ExportCertificate(ctx,
			st.ExternalPath(proj.Keystore), alias, password, st.ExternalPath(proj.Certificate))
		if err != nil {
			return err
		}
	}

	summary, err := p.resolveSummary(ctx, st, base, alias, password, identity, identityKnown, useExisting)
	if err != nil {
		return err
	}

	// best-effort: losing requester metadata never blocks delivery
	if err := st.WriteRequesterInfo(base, req.Requester); err != nil {
		logging.Warningf("%v", err)
	}

	status.Update(ctx, "Sending the files...")
	files := []File{
		{Name: base + ".jks", Path: st.ExternalPath(proj.Keystore)},
		{Name: base + ".pem", Path: st.ExternalPath(proj.Certificate), Caption: summary},
	}
	if err := p.messenger.SendFiles(ctx, req.Subject, files); err != nil {
		return fmt.Errorf("pipeline: can't deliver artifacts: %w", err)
	}

	return nil
}

// prepareProjectDir archives whatever is left at the project path and
// creates a fresh directory. Archiving happens for partial sets too,
// so a later existence check can't trip over half-written state.
func (p *Pipeline) prepareProjectDir(st *store.Store, base string) error {
	if st.Partial(base) {
		if err := st.Archive(base); err != nil {
			return err
		}
	}
	return st.EnsureProjectDir(base)
}

// resolveSummary reuses the persisted summary verbatim on the reuse
// path and builds a fresh one otherwise. An unrecoverable identity
// degrades to all-empty fields instead of failing the request.
func (p *Pipeline) resolveSummary(ctx context.Context, st *store.Store, base, alias, password string,
	identity dname.Identity, identityKnown, useExisting bool) (string, error) {

	proj := st.Project(base)

	if useExisting {
		summary, err := st.ReadSummary(base)
		if err == nil {
			return summary, nil
		}
		logging.Warningf("no reusable summary for '%s': %v", base, err)
	}

	if !identityKnown {
		id, err := p.tool.ReadIdentity(ctx, st.ExternalPath(proj.Keystore), alias, password)
		switch {
		case errors.Is(err, dname.ErrNoIdentity):
			logging.Infof("identity for '%s' is unrecoverable, using empty fields", base)
		case err != nil:
			return "", err
		default:
			identity = id
		}
	}

	summary := Summary(identity, alias, password)
	if err := st.WriteSummary(base, summary); err != nil {
		return "", err
	}
	return summary, nil
}
