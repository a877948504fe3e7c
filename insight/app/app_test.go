package app

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/ask-scriptures/insight/logger"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/provider"
)

func TestApplyConfigFile_FlagsWin(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: sqlite
store-path: /tmp/x.db
model: file-model
structured: true
timeout: 5s
`), 0o600))

	s := DefaultSettings()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	s.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-model", "flag-model"}))
	require.NoError(t, ApplyConfigFile(fs, path))

	assert.Equal(t, StoreSQLite, s.StoreKind)
	assert.Equal(t, "/tmp/x.db", s.StorePath)
	assert.Equal(t, "flag-model", s.Model)
	assert.True(t, s.Structured)
	assert.Equal(t, 5*time.Second, s.Timeout)
}

func TestApplyConfig_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	s.RegisterFlags(fs)
	err := applyConfig(fs, []byte("colour: blue\n"), "inline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown option "colour"`)
}

func TestScalarString_JoinsLists(t *testing.T) {
	t.Parallel()

	got, err := scalarString([]interface{}{"http://a", "http://b"})
	require.NoError(t, err)
	assert.Equal(t, "http://a,http://b", got)

	_, err = scalarString(map[string]interface{}{"x": 1})
	assert.Error(t, err)
}

func TestResolveAPIKey(t *testing.T) {
	t.Parallel()

	env := map[string]string{"OPENAI_API_KEY": "sk-openai", "GROQ_API_KEY": "gsk-groq"}
	s := Settings{}
	s.ResolveAPIKey(func(k string) string { return env[k] })
	assert.Equal(t, "gsk-groq", s.APIKey)

	delete(env, "GROQ_API_KEY")
	s = Settings{}
	s.ResolveAPIKey(func(k string) string { return env[k] })
	assert.Equal(t, "sk-openai", s.APIKey)

	s = Settings{APIKey: "explicit"}
	s.ResolveAPIKey(func(k string) string { return env[k] })
	assert.Equal(t, "explicit", s.APIKey)
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.StoreKind = "postgres"
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.StorePath = ""
	assert.Error(t, s.Validate())

	s.StoreKind = StoreMemory
	assert.NoError(t, s.Validate())
}

func TestOpen_OfflineUsesCanned(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.StoreKind = StoreMemory
	s.APIKey = "ignored"
	s.Offline = true

	a, err := OpenWithLogger(context.Background(), s, logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.Answerer.(*provider.CannedAnswerer)
	assert.True(t, ok, "answerer=%T", a.Answerer)

	res, err := a.Guide.Ask(context.Background(), "", "What is karma?")
	require.NoError(t, err)
	assert.False(t, res.Abandoned)
	assert.Equal(t, 1, a.Store.Profile().TotalQuestions)
}

func TestOpen_WithKeyUsesFallbackChain(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.StoreKind = StoreMemory
	s.APIKey = "gsk-test"

	a, err := OpenWithLogger(context.Background(), s, logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	fb, ok := a.Answerer.(*provider.FallbackAnswerer)
	require.True(t, ok, "answerer=%T", a.Answerer)
	_, ok = fb.Fallback.(*provider.CannedAnswerer)
	assert.True(t, ok)
}

func TestOpen_SQLitePersistsAcrossRestarts(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.StoreKind = StoreSQLite
	s.StorePath = filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	a, err := OpenWithLogger(ctx, s, logger.Nop())
	require.NoError(t, err)
	_, err = a.Guide.Ask(ctx, "", "How do I find peace?")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := OpenWithLogger(ctx, s, logger.Nop())
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 1, b.Store.Profile().TotalQuestions)
	assert.Len(t, b.Store.Sessions(), 1)
}

func TestOpen_BadCannedPath(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.StoreKind = StoreMemory
	s.CannedPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := OpenWithLogger(context.Background(), s, logger.Nop())
	assert.Error(t, err)
}
