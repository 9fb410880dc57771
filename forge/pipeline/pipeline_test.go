package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/keyforge/keyforge/forge/dname"
	"github.com/keyforge/keyforge/forge/keytool"
	"github.com/keyforge/keyforge/forge/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = dname.Identity{
	FirstName:   "John",
	LastName:    "Doe",
	OrgUnit:     "Engineering",
	Org:         "Acme",
	City:        "Springfield",
	State:       "Illinois",
	CountryCode: "US",
}

type fixedSynth struct{ id dname.Identity }

func (f fixedSynth) Synthesize() dname.Identity { return f.id }

// fakeToolchain mimics keytool by writing placeholder artifacts via
// writeFile, which targets the map filesystem in persist tests and
// the real temp dir in ephemeral tests.
type fakeToolchain struct {
	writeFile func(name string, content []byte) error

	generateCalls []string
	exportCalls   []string
	listCalls     []string

	generateErr error
	exportErr   error
	listErr     error
	listed      dname.Identity
}

func (f *fakeToolchain) GenerateKeyPair(ctx context.Context, keystorePath, alias, password, dn string) error {
	f.generateCalls = append(f.generateCalls, keystorePath)
	if f.generateErr != nil {
		return f.generateErr
	}
	return f.writeFile(keystorePath, []byte("jks:"+alias+":"+password+":"+dn))
}

func (f *fakeToolchain) ExportCertificate(ctx context.Context, keystorePath, alias, password, outPath string) error {
	f.exportCalls = append(f.exportCalls, outPath)
	if f.exportErr != nil {
		return f.exportErr
	}
	return f.writeFile(outPath, []byte("pem:"+alias))
}

func (f *fakeToolchain) ReadIdentity(ctx context.Context, keystorePath, alias, password string) (dname.Identity, error) {
	f.listCalls = append(f.listCalls, keystorePath)
	if f.listErr != nil {
		return dname.Identity{}, f.listErr
	}
	return f.listed, nil
}

type fakeStatus struct {
	updates *[]string
	deleted *bool
}

func (s fakeStatus) Update(ctx context.Context, text string) {
	*s.updates = append(*s.updates, text)
}

func (s fakeStatus) Delete(ctx context.Context) {
	*s.deleted = true
}

type fakeMessenger struct {
	texts         []string
	files         []File
	fileContents  map[string][]byte
	statusUpdates []string
	statusDeleted bool
	sendFilesErr  error
}

func (m *fakeMessenger) SendText(ctx context.Context, subject, text string) error {
	m.texts = append(m.texts, text)
	return nil
}

func (m *fakeMessenger) SendFiles(ctx context.Context, subject string, files []File) error {
	if m.sendFilesErr != nil {
		return m.sendFilesErr
	}
	m.files = append(m.files, files...)
	// snapshot contents while the files still exist
	for _, fi := range files {
		if content, err := os.ReadFile(fi.Path); err == nil {
			if m.fileContents == nil {
				m.fileContents = make(map[string][]byte)
			}
			m.fileContents[fi.Name] = content
		}
	}
	return nil
}

func (m *fakeMessenger) BeginStatus(ctx context.Context, subject, text string) Status {
	m.statusUpdates = append(m.statusUpdates, text)
	return fakeStatus{updates: &m.statusUpdates, deleted: &m.statusDeleted}
}

type testEnv struct {
	fs        store.Filesystem
	store     *store.Store
	tool      *fakeToolchain
	messenger *fakeMessenger
	pipeline  *Pipeline
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	fsys := store.NewMapFs(nil)
	st := store.New(fsys, "generated", "generated_old")
	tool := &fakeToolchain{writeFile: fsys.WriteFile, listed: testIdentity}
	messenger := &fakeMessenger{}
	opts.PersistArtifacts = true

	return &testEnv{
		fs:        fsys,
		store:     st,
		tool:      tool,
		messenger: messenger,
		pipeline:  New(st, tool, fixedSynth{testIdentity}, messenger, opts),
	}
}

func requester() store.RequesterInfo {
	return store.RequesterInfo{
		UserID:      "42",
		Username:    "@jdoe",
		FullName:    "John Doe",
		RequestedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestFreshNameEndToEnd(t *testing.T) {
	env := newTestEnv(t, Options{})

	err := env.pipeline.Run(context.Background(), Request{
		Subject:     "chat-1",
		PackageName: "my-app",
		Requester:   requester(),
	})
	require.NoError(t, err)

	require.Equal(t, []string{"generated/my-app/my-app.jks"}, env.tool.generateCalls)
	require.Equal(t, []string{"generated/my-app/my-app.pem"}, env.tool.exportCalls)
	assert.Empty(t, env.tool.listCalls, "identity was just synthesized, no extraction needed")

	// generated with defaults and the synthesized identity
	ks, err := env.store.ReadFile("generated/my-app/my-app.jks")
	require.NoError(t, err)
	assert.Contains(t, string(ks), ":key0:1234567890:")
	assert.Contains(t, string(ks), "CN=John Doe")

	summary, err := env.store.ReadSummary("my-app")
	require.NoError(t, err)
	assert.Contains(t, summary, "First name: John")
	assert.Contains(t, summary, "Country code: US")
	assert.Contains(t, summary, "Alias: key0")
	assert.Contains(t, summary, "Password: 1234567890")

	user, err := env.store.ReadFile("generated/my-app/user.txt")
	require.NoError(t, err)
	assert.Contains(t, string(user), "user_id: 42")

	require.Len(t, env.messenger.files, 2)
	assert.Equal(t, "my-app.jks", env.messenger.files[0].Name)
	assert.Equal(t, "my-app.pem", env.messenger.files[1].Name)
	assert.Equal(t, summary, env.messenger.files[1].Caption)
	assert.True(t, env.messenger.statusDeleted)
}

func TestUploadEndToEnd(t *testing.T) {
	env := newTestEnv(t, Options{})

	err := env.pipeline.Run(context.Background(), Request{
		Subject:  "chat-1",
		Upload:   &Upload{Filename: "cert.jks", Content: []byte{0xfe, 0xed}},
		Alias:    "mykey",
		Password: "secret123",
	})
	require.NoError(t, err)

	assert.Empty(t, env.tool.generateCalls, "uploads must not generate key material")
	require.Equal(t, []string{"generated/cert/cert.pem"}, env.tool.exportCalls)
	require.Equal(t, []string{"generated/cert/cert.jks"}, env.tool.listCalls)

	// ingested byte for byte
	ks, err := env.store.ReadFile("generated/cert/cert.jks")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe, 0xed}, ks)

	summary, err := env.store.ReadSummary("cert")
	require.NoError(t, err)
	assert.Contains(t, summary, "First name: John")
	assert.Contains(t, summary, "Alias: mykey")
	assert.Contains(t, summary, "Password: secret123")
}

func TestUploadIdentityDegradesToEmpty(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.tool.listErr = dname.ErrNoIdentity

	err := env.pipeline.Run(context.Background(), Request{
		Subject:  "chat-1",
		Upload:   &Upload{Filename: "cert.jks", Content: []byte{1}},
		Alias:    "mykey",
		Password: "secret123",
	})
	require.NoError(t, err, "unrecoverable identity must not fail the pipeline")

	summary, err := env.store.ReadSummary("cert")
	require.NoError(t, err)
	assert.Contains(t, summary, "First name: -")
	assert.Contains(t, summary, "Country code: -")
	assert.Contains(t, summary, "Alias: mykey")
	require.Len(t, env.messenger.files, 2, "artifacts are still delivered")
}

func TestReuseSkipsGeneration(t *testing.T) {
	env := newTestEnv(t, Options{})

	// first run creates the project
	err := env.pipeline.Run(context.Background(), Request{Subject: "chat-1", PackageName: "my-app"})
	require.NoError(t, err)
	priorSummary, err := env.store.ReadSummary("my-app")
	require.NoError(t, err)

	env.tool.generateCalls = nil
	env.tool.exportCalls = nil
	env.messenger.files = nil

	err = env.pipeline.Run(context.Background(), Request{
		Subject:     "chat-1",
		PackageName: "my-app",
		UseExisting: true,
	})
	require.NoError(t, err)

	assert.Empty(t, env.tool.generateCalls, "reuse must not invoke generation")
	assert.Empty(t, env.tool.exportCalls, "reuse must not invoke export")
	require.Len(t, env.messenger.files, 2)
	assert.Equal(t, priorSummary, env.messenger.files[1].Caption, "delivered summary must match the persisted one")
}

func TestReuseFallsBackToRegeneration(t *testing.T) {
	env := newTestEnv(t, Options{})

	err := env.pipeline.Run(context.Background(), Request{
		Subject:     "chat-1",
		PackageName: "my-app",
		UseExisting: true,
	})
	require.NoError(t, err)

	require.Len(t, env.tool.generateCalls, 1, "missing artifacts must trigger regeneration")
	assert.Contains(t, env.messenger.texts, "Existing files not found, generating a new key.")
}

func TestRegenerationArchivesOldSet(t *testing.T) {
	env := newTestEnv(t, Options{})

	err := env.pipeline.Run(context.Background(), Request{Subject: "chat-1", PackageName: "my-app"})
	require.NoError(t, err)
	oldKs, err := env.store.ReadFile("generated/my-app/my-app.jks")
	require.NoError(t, err)

	err = env.pipeline.Run(context.Background(), Request{Subject: "chat-1", PackageName: "my-app"})
	require.NoError(t, err)

	archived, err := env.store.ReadFile("generated_old/my-app/my-app.jks")
	require.NoError(t, err)
	assert.Equal(t, oldKs, archived, "archived keystore must be byte-identical")
	assert.True(t, env.store.Complete("my-app"), "fresh set must exist at the original path")
}

func TestGenerationFailureIsReported(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.tool.generateErr = keytool.ErrToolFailed

	err := env.pipeline.Run(context.Background(), Request{Subject: "chat-1", PackageName: "my-app"})
	require.ErrorIs(t, err, keytool.ErrToolFailed)

	assert.Empty(t, env.messenger.files, "no delivery after a failed generation")
	last := env.messenger.statusUpdates[len(env.messenger.statusUpdates)-1]
	assert.Contains(t, last, "Check the alias/password")
}

func TestMissingToolIsDistinctOutcome(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.tool.generateErr = keytool.ErrToolMissing

	err := env.pipeline.Run(context.Background(), Request{Subject: "chat-1", PackageName: "my-app"})
	require.ErrorIs(t, err, keytool.ErrToolMissing)

	last := env.messenger.statusUpdates[len(env.messenger.statusUpdates)-1]
	assert.Contains(t, last, "keytool was not found")
}

func TestNoInputIsRejectedEarly(t *testing.T) {
	env := newTestEnv(t, Options{})

	err := env.pipeline.Run(context.Background(), Request{Subject: "chat-1"})
	require.ErrorIs(t, err, ErrNoInput)

	assert.Contains(t, env.messenger.texts, "No input data.")
	assert.Empty(t, env.tool.generateCalls)
	assert.Empty(t, env.tool.exportCalls)
}

func TestEphemeralProfileLeavesNothingBehind(t *testing.T) {
	fsys := store.NewMapFs(nil)
	st := store.New(fsys, "generated", "generated_old")
	tool := &fakeToolchain{writeFile: func(name string, content []byte) error {
		return os.WriteFile(name, content, 0644)
	}}
	messenger := &fakeMessenger{}
	p := New(st, tool, fixedSynth{testIdentity}, messenger, Options{PersistArtifacts: false})

	err := p.Run(context.Background(), Request{Subject: "chat-1", PackageName: "my-app"})
	require.NoError(t, err)

	require.Len(t, messenger.files, 2)
	assert.Contains(t, string(messenger.fileContents["my-app.jks"]), "CN=John Doe")

	for _, fi := range messenger.files {
		_, statErr := os.Stat(fi.Path)
		assert.True(t, errors.Is(statErr, os.ErrNotExist), "temp artifact '%s' must be removed", fi.Path)
	}

	assert.False(t, st.Complete("my-app"), "ephemeral runs must not persist artifacts")
	assert.False(t, p.Exists("my-app"))
}

func TestUserMessageMapping(t *testing.T) {
	assert.Contains(t, UserMessage(keytool.ErrToolMissing), "Install OpenJDK")
	assert.Contains(t, UserMessage(keytool.ErrToolTimedOut), "too long")
	assert.Contains(t, UserMessage(keytool.ErrToolFailed), "alias/password")
	assert.Contains(t, UserMessage(errors.New("boom")), "Unexpected error")
}

func TestSummaryFormat(t *testing.T) {
	got := Summary(testIdentity, "key0", "1234567890")
	expect := "First name: John\n" +
		"Last name: Doe\n" +
		"Organization unit: Engineering\n" +
		"Organization: Acme\n" +
		"City: Springfield\n" +
		"State: Illinois\n" +
		"Country code: US\n" +
		"\nAlias: key0\nPassword: 1234567890"
	assert.Equal(t, expect, got)
}

func TestSummaryDashesForEmptyIdentity(t *testing.T) {
	got := Summary(dname.Identity{}, "key0", "pw")
	for _, line := range []string{
		"First name: -", "Last name: -", "Organization unit: -",
		"Organization: -", "City: -", "State: -", "Country code: -",
	} {
		assert.Contains(t, got, line)
	}
}
