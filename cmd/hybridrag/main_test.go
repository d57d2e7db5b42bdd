package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findStringFlag(flags []cli.Flag, name string) *cli.StringFlag {
	for _, flag := range flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == name {
			return f
		}
	}
	return nil
}

func findCommand(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func TestNewApp(t *testing.T) {
	app := newApp()

	t.Run("commands", func(t *testing.T) {
		for _, name := range []string{"ingest", "ask", "documents", "sessions", "stats", "clear", "reembed"} {
			assert.NotNil(t, findCommand(app, name), name)
		}
	})

	t.Run("db has a default and an env var", func(t *testing.T) {
		db := findStringFlag(app.Flags, "db")
		require.NotNil(t, db)
		assert.Equal(t, "./hybridrag_db", db.Value)
		assert.Equal(t, []string{"HYBRIDRAG_DB"}, db.EnvVars)
	})

	t.Run("embedding flags read the environment", func(t *testing.T) {
		for _, name := range []string{"embedding-host", "embedding-model", "embedding-token"} {
			flag := findStringFlag(app.Flags, name)
			require.NotNil(t, flag, name)
			assert.NotEmpty(t, flag.EnvVars, name)
			assert.Empty(t, flag.Value, name)
		}
	})

	t.Run("reembed batch size default", func(t *testing.T) {
		cmd := findCommand(app, "reembed")
		require.NotNil(t, cmd)
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "batch-size" {
				assert.Equal(t, 100, f.Value)
				return
			}
		}
		t.Fatal("batch-size flag not found")
	})
}

// cliHarness runs the real app against a temporary database with a mock
// embedder.
type cliHarness struct {
	t      *testing.T
	db     string
	dir    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	previous := newEmbedder
	newEmbedder = func(*ai.Config) (ai.Embedder, error) {
		return mock.NewBagOfWordsEmbedder("machine", "learning", "data", "cooking", "heat", "extra"), nil
	}
	t.Cleanup(func() { newEmbedder = previous })

	dir := t.TempDir()
	return &cliHarness{t: t, db: filepath.Join(dir, "db"), dir: dir}
}

func (h *cliHarness) file(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	app := newApp()
	app.Writer = &h.stdout
	app.ErrWriter = &h.stderr
	base := []string{"hybridrag", "--log-level", "error", "--db", h.db}
	err := app.Run(append(base, args...))
	return h.stdout.String(), err
}

func TestCommands(t *testing.T) {
	h := newCLIHarness(t)
	ml := h.file("ml.txt", "machine learning uses data")
	cooking := h.file("cooking.md", "cooking requires heat")

	out, err := h.run("ingest", "--session", "s1", ml)
	require.NoError(t, err)
	assert.Contains(t, out, "Session: s1")
	assert.Contains(t, out, "ml.txt: 1 pages, 1 chunks")

	out, err = h.run("ingest", cooking)
	require.NoError(t, err)
	assert.Contains(t, out, "cooking.md")

	t.Run("ask", func(t *testing.T) {
		out, err := h.run("ask", "machine", "learning")
		require.NoError(t, err)
		assert.Contains(t, out, "[1] ml.txt, page 1")
		assert.Contains(t, out, "machine learning uses data")
		assert.NotContains(t, out, "cooking requires heat")
	})

	t.Run("ask scoped to a session without matches", func(t *testing.T) {
		out, err := h.run("ask", "--session", "s1", "cooking heat")
		require.NoError(t, err)
		assert.Contains(t, out, "No relevant passages found.")
	})

	t.Run("ask scoped to documents", func(t *testing.T) {
		out, err := h.run("ask", "--document", "cooking.md", "--bm25-weight", "1", "--embedding-weight", "0", "heat")
		require.NoError(t, err)
		assert.Contains(t, out, "cooking.md")
	})

	t.Run("ask without a question", func(t *testing.T) {
		_, err := h.run("ask")
		require.Error(t, err)
	})

	t.Run("documents", func(t *testing.T) {
		out, err := h.run("documents")
		require.NoError(t, err)
		assert.Contains(t, out, "ml.txt")
		assert.Contains(t, out, "cooking.md")

		out, err = h.run("documents", "--session", "s1")
		require.NoError(t, err)
		assert.Contains(t, out, "ml.txt")
		assert.NotContains(t, out, "cooking.md")
	})

	t.Run("sessions", func(t *testing.T) {
		out, err := h.run("sessions")
		require.NoError(t, err)
		assert.Contains(t, out, "s1")
		assert.Contains(t, out, "true")
	})

	t.Run("stats", func(t *testing.T) {
		out, err := h.run("stats")
		require.NoError(t, err)
		assert.Contains(t, out, "Documents: 2")
		assert.Contains(t, out, "Chunks: 2")
		assert.Contains(t, out, "6 dimensions")
	})

	t.Run("reembed", func(t *testing.T) {
		_, err := h.run("reembed", "--batch-size", "0")
		require.Error(t, err)

		_, err = h.run("reembed", "--batch-size", "1")
		require.NoError(t, err)
		assert.Contains(t, h.stderr.String(), "Reembedding complete")
	})

	t.Run("clear", func(t *testing.T) {
		_, err := h.run("clear")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--yes")

		out, err := h.run("clear", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "Corpus cleared.")

		out, err = h.run("stats")
		require.NoError(t, err)
		assert.Contains(t, out, "Documents: 0")
	})
}

func TestIngestCommandErrors(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("ingest")
	require.Error(t, err)

	_, err = h.run("ingest", h.file("image.png", "not text"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")

	_, err = h.run("ingest", h.file("blank.txt", "   "))
	require.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	newTestApp := func(action cli.ActionFunc) *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "info",
				},
			},
			Before: setupLogger,
			Action: action,
		}
	}
	noop := func(c *cli.Context) error { return nil }

	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
			t.Run(level, func(t *testing.T) {
				err := newTestApp(noop).Run([]string{"test", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newTestApp(noop).Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		err := newTestApp(func(c *cli.Context) error {
			assert.Equal(t, "debug", c.String("log-level"))
			return nil
		}).Run([]string{"test", "-l", "debug"})
		require.NoError(t, err)
	})
}
