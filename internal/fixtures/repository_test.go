package fixtures

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestRepository_LoadJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"lines":[{"route_id":"3","status":"delayed","delay_min":4}]}`)
	writeFile(t, dir, "b.yaml", "alerts:\n  - id: A1\n    severity: high\n")
	r := NewRepository(dir, time.Minute)

	a, err := r.Load("a.json")
	require.NoError(t, err)
	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lines":[{"route_id":"3","status":"delayed","delay_min":4}]}`, string(b))

	y, err := r.Load("b.yaml")
	require.NoError(t, err)
	alerts := y["alerts"].([]any)
	assert.Equal(t, "A1", alerts[0].(map[string]any)["id"])
}

func TestRepository_ReturnsCopies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "alt.json", `{"from_stop":"X","alternatives":[]}`)
	r := NewRepository(dir, 0)

	doc, err := r.Load("alt.json")
	require.NoError(t, err)
	doc["from_stop"] = "CHANGED"

	again, err := r.Load("alt.json")
	require.NoError(t, err)
	assert.Equal(t, "X", again["from_stop"])
}

func TestRepository_Missing(t *testing.T) {
	r := NewRepository(t.TempDir(), 0)
	_, err := r.Load("nope.json")
	assert.ErrorIs(t, err, ErrNotFound)

	doc, ok, err := r.LoadIfExists("nope.json")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, doc)
}

func TestRepository_RejectsPaths(t *testing.T) {
	r := NewRepository(t.TempDir(), 0)
	for _, name := range []string{"../etc/passwd", "sub/file.json", ".."} {
		_, err := r.Load(name)
		assert.Error(t, err, name)
	}
}

func TestRepository_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `{"lines": [`)
	r := NewRepository(dir, 0)
	_, ok, err := r.LoadIfExists("bad.json")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRepository_ShippedFixtures(t *testing.T) {
	r := NewRepository(filepath.Join("..", "..", "fixtures"), 0)
	for _, name := range []string{"demo_delays.json", "demo_delays_heavy.json", "demo_alerts.json", "demo_alternatives.json", "demo_bulletins.json"} {
		_, err := r.Load(name)
		assert.NoError(t, err, name)
	}
}

func TestRepository_DecodeTyped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lines.json", `{"lines":[{"route_id":"3","delay_min":4}]}`)
	r := NewRepository(dir, 0)

	var got struct {
		Lines []struct {
			RouteID  string `yaml:"route_id"`
			DelayMin int    `yaml:"delay_min"`
		} `yaml:"lines"`
	}
	require.NoError(t, r.Decode("lines.json", &got))
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "3", got.Lines[0].RouteID)
	assert.Equal(t, 4, got.Lines[0].DelayMin)
}
