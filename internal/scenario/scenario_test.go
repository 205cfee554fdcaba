package scenario

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilcraft/storyroom/internal/game"
)

const sampleYAML = `
name: test-vale
opening_location: harbor
branches:
  - name: docks
    keywords: ["docks", "pier"]
    narration: "Gulls wheel overhead."
    effect:
      move_to: docks
      lore: ["the-old-harbor"]
  - name: bribe
    keywords: ["bribe", "coin"]
    effect:
      relationships:
        harbormaster: 2
      remove_items: ["coin purse"]
  - name: flee
    keywords: ["flee", "run"]
    effect:
      health_delta: -5
    ending: true
  - name: drift
    fallback: true
    narration: "The tide decides for you."
`

// TestParse tests decoding a full scenario file.
func TestParse(t *testing.T) {
	sc, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-vale", sc.Name)
	assert.Equal(t, "harbor", sc.OpeningLocation)
	require.Len(t, sc.Branches, 4)

	docks := sc.Branches[0]
	assert.Equal(t, "docks", docks.Name)
	assert.Equal(t, []string{"docks", "pier"}, docks.Keywords)
	assert.Equal(t, "docks", docks.Effect.MoveTo)
	assert.Equal(t, []string{"the-old-harbor"}, docks.Effect.Lore)

	bribe := sc.Branches[1]
	assert.Equal(t, 2, bribe.Effect.Relationships["harbormaster"])
	assert.Equal(t, []string{"coin purse"}, bribe.Effect.RemoveItems)

	assert.True(t, sc.Branches[2].Ending)
	assert.True(t, sc.Branches[3].Fallback)
}

// TestParseRejectsInvalid tests validation failures.
func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "not yaml",
			yaml:    "{{nope",
			wantErr: "parse scenario",
		},
		{
			name:    "missing name",
			yaml:    "opening_location: x\nbranches:\n  - name: drift\n    fallback: true\n",
			wantErr: "missing name",
		},
		{
			name:    "missing opening location",
			yaml:    "name: t\nbranches:\n  - name: drift\n    fallback: true\n",
			wantErr: "missing opening_location",
		},
		{
			name:    "no fallback",
			yaml:    "name: t\nopening_location: x\nbranches:\n  - name: a\n    keywords: [\"a\"]\n",
			wantErr: "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestLoad tests reading a scenario from disk.
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-vale", sc.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

// TestDefault tests that the compiled-in scenario is valid and drives
// the engine.
func TestDefault(t *testing.T) {
	sc := Default()
	require.NoError(t, game.ValidateTable(sc.Branches))
	assert.NotEmpty(t, sc.OpeningLocation)

	_, err := game.NewEngine(sc.Branches, game.DefaultMaxTurns)
	require.NoError(t, err)
}

// TestWatcherReload tests that rewriting the file swaps in the new
// scenario and that a broken rewrite keeps the old one.
func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	var mu sync.Mutex
	var got []*Scenario
	w, err := NewWatcher(path, func(sc *Scenario) {
		mu.Lock()
		got = append(got, sc)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	updated := "name: updated-vale\nopening_location: harbor\nbranches:\n  - name: drift\n    fallback: true\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].Name == "updated-vale"
	}, 5*time.Second, 50*time.Millisecond)

	// Invalid content is ignored
	require.NoError(t, os.WriteFile(path, []byte("{{broken"), 0o644))
	time.Sleep(2 * reloadDebounce)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 1)
}
