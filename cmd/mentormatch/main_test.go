package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/mentormatch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// embeddingServer fakes an OpenAI-compatible embeddings endpoint. Texts
// mentioning "go" point one way, "art" another, everything else a third.
func embeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input any `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		var inputs []string
		switch in := body.Input.(type) {
		case string:
			inputs = []string{in}
		case []any:
			for _, v := range in {
				inputs = append(inputs, fmt.Sprint(v))
			}
		}

		var data []string
		for i, text := range inputs {
			vector := "[0,0,1]"
			switch {
			case strings.Contains(text, "go"):
				vector = "[1,0.1,0]"
			case strings.Contains(text, "art"):
				vector = "[0,1,0.1]"
			}
			data = append(data, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":%s}`, i, vector))
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":"test","data":[%s],"usage":{"prompt_tokens":1,"total_tokens":1}}`,
			strings.Join(data, ","))
	}))
	t.Cleanup(server.Close)
	return server
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"mentormatch"}, args...))
	return out.String(), err
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"simple", []string{"bio=hello"}, map[string]string{"bio": "hello"}, false},
		{"text with equals and commas", []string{"skills=go, a=b"}, map[string]string{"skills": "go, a=b"}, false},
		{"blank text kept", []string{"bio="}, map[string]string{"bio": ""}, false},
		{"trims name", []string{" bio =x"}, map[string]string{"bio": "x"}, false},
		{"missing separator", []string{"bio"}, nil, true},
		{"empty name", []string{"=text"}, nil, true},
		{"reserved name", []string{core.AllAttributes + "=x"}, nil, true},
		{"none", nil, map[string]string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFields(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	_, err := runApp(t, "--log-level", "verbose", "--db", t.TempDir(), "attributes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRequiredFlags(t *testing.T) {
	t.Run("db is required", func(t *testing.T) {
		_, err := runApp(t, "attributes")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("store requires subject", func(t *testing.T) {
		_, err := runApp(t, "--db", t.TempDir(), "store", "--field", "bio=x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subject")
	})

	t.Run("match requires criteria", func(t *testing.T) {
		_, err := runApp(t, "--db", t.TempDir(), "match", "--searcher", "s")
		assert.ErrorIs(t, err, core.ErrEmptyCriteria)
	})

	t.Run("import requires profiles", func(t *testing.T) {
		_, err := runApp(t, "--db", t.TempDir(), "import")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "profiles")
	})
}

func TestDefaults(t *testing.T) {
	app := newApp()
	var host *cli.StringFlag
	for _, flag := range app.Flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == "embedding-host" {
			host = f
		}
	}
	require.NotNil(t, host)
	assert.Equal(t, "http://localhost:11434/v1", host.Value)
	assert.True(t, app.DisableSliceFlagSeparator)
}

func TestStoreMatchAndAttributes(t *testing.T) {
	server := embeddingServer(t)
	db := filepath.Join(t.TempDir(), "db")
	global := []string{"--log-level", "error", "--db", db, "--embedding-host", server.URL}

	out, err := runApp(t, append(global, "store", "--subject", "m1", "--field", "skills=go, kubernetes")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored 1 attributes for m1")

	_, err = runApp(t, append(global, "store", "-s", "m2", "-f", "skills=art history", "-f", "bio=painter")...)
	require.NoError(t, err)

	out, err = runApp(t, append(global, "match", "--searcher", "s", "--criteria", "skills=go mentor", "--json")...)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	require.Len(t, raw, 2)
	assert.Contains(t, raw[0], "subject_id")
	assert.Contains(t, raw[0], "score")
	assert.Contains(t, raw[0], "contributing_attributes")

	var results []core.MatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "m1", results[0].SubjectID)
	assert.Equal(t, []string{"skills"}, results[0].ContributingAttributes)

	out, err = runApp(t, append(global, "match", "-s", "s", "-c", "skills=go mentor")...)
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "m1")

	out, err = runApp(t, append(global, "attributes")...)
	require.NoError(t, err)
	assert.Equal(t, "bio\nskills\n", out)

	out, err = runApp(t, append(global, "attributes", "--subject", "m1")...)
	require.NoError(t, err)
	assert.Equal(t, "skills\n", out)

	_, err = runApp(t, append(global, "delete", "--subject", "m1")...)
	require.NoError(t, err)
	out, err = runApp(t, append(global, "attributes", "--subject", "m1")...)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMatchWithEligibleFile(t *testing.T) {
	server := embeddingServer(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "db")
	global := []string{"--log-level", "error", "--db", db, "--embedding-host", server.URL}

	for _, id := range []string{"m1", "m2"} {
		_, err := runApp(t, append(global, "store", "-s", id, "-f", "skills=go "+id)...)
		require.NoError(t, err)
	}

	eligible := filepath.Join(dir, "eligible.txt")
	require.NoError(t, os.WriteFile(eligible, []byte("m2\n"), 0o644))

	criteria := filepath.Join(dir, "criteria.yaml")
	require.NoError(t, os.WriteFile(criteria, []byte("skills: go\n"), 0o644))

	out, err := runApp(t, append(global, "match", "-s", "s", "--criteria-file", criteria, "--eligible-file", eligible, "--json")...)
	require.NoError(t, err)

	var results []core.MatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "m2", results[0].SubjectID)
}

func TestImportAndEvaluate(t *testing.T) {
	server := embeddingServer(t)
	dir := t.TempDir()
	global := []string{"--log-level", "error", "--db", filepath.Join(dir, "store.db"), "--backend", "sqlite", "--embedding-host", server.URL}

	profiles := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(profiles, []byte(`
- subject_id: m1
  fields:
    skills: go services
- subject_id: m2
  fields:
    skills: art and design
`), 0o644))

	out, err := runApp(t, append(global, "import", "--profiles", profiles, "--batch-size", "1", "--report-interval", "1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored 2 of 2 profiles")

	dataset := filepath.Join(dir, "dataset.yaml")
	require.NoError(t, os.WriteFile(dataset, []byte(`
mentors:
  - id: m3
    name: Grace
    fields:
      skills: go compilers
queries:
  - name: wants go
    criteria:
      skills: go help
    target_mentor_id: m1
  - name: wants art
    criteria:
      skills: art class
    target_mentor_id: m2
`), 0o644))

	report := filepath.Join(dir, "results.json")
	out, err = runApp(t, append(global, "evaluate", "--dataset", dataset, "--output", report, "--top-n", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Passed: 2/2")

	_, err = os.Stat(report)
	assert.NoError(t, err)
}
