package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mnemo/internal/testutil"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, []string{}},
		{"trim and collapse", []string{"  machine   learning ", "\tGo\n"}, []string{"machine learning", "Go"}},
		{"drop blanks", []string{"", "   ", "x"}, []string{"x"}},
		{"case-insensitive dedupe keeps first", []string{"Go", "GO", "go", "Rust"}, []string{"Go", "Rust"}},
		{"cap at ten", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"},
			[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}},
		{"duplicate within first ten leaves a gap", []string{"a", "A", "b", "c", "d", "e", "f", "g", "h", "i", "eleventh", "twelfth"},
			[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}},
		{"blank within first ten leaves a gap", []string{"a", " ", "b", "c", "d", "e", "f", "g", "h", "i", "eleventh"},
			[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
}

func TestReconcileCapsAndDedupes(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	n := testutil.SeedNote(t, st, "u1", "", "x")

	proposed := make([]string, 0, 15)
	for i := range 15 {
		proposed = append(proposed, fmt.Sprintf("Tag %d", i))
	}
	proposed = append([]string{"tag 0"}, proposed...)

	tags, err := NewReconciler(st).Reconcile(ctx, "u1", n.ID, proposed)
	require.NoError(t, err)
	// "Tag 0" folds into "tag 0", so only nine of the first ten survive.
	assert.Len(t, tags, MaxTags-1)
	assert.Equal(t, "tag 0", tags[0].Name)
	for _, tg := range tags {
		assert.NotEqual(t, "Tag 9", tg.Name, "names past the first ten are not considered")
	}

	seen := map[string]bool{}
	for _, tg := range tags {
		assert.False(t, seen[tg.ID], "duplicate tag %s", tg.Name)
		seen[tg.ID] = true
	}

	attached, err := st.NoteTags(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, attached, MaxTags-1)
}

func TestReconcileReusesExistingTags(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	a := testutil.SeedNote(t, st, "u1", "", "a")
	b := testutil.SeedNote(t, st, "u1", "", "b")
	r := NewReconciler(st)

	first, err := r.Reconcile(ctx, "u1", a.ID, []string{"Philosophy"})
	require.NoError(t, err)
	second, err := r.Reconcile(ctx, "u1", b.ID, []string{"philosophy", "Mind"})
	require.NoError(t, err)

	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "Philosophy", second[0].Name)
}

func TestReconcileConcurrentSameTag(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	r := NewReconciler(st)

	const runs = 8
	notes := make([]string, runs)
	for i := range notes {
		notes[i] = testutil.SeedNote(t, st, "u1", "", "x").ID
	}

	var wg sync.WaitGroup
	errs := make([]error, runs)
	for i := range runs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Reconcile(ctx, "u1", notes[i], []string{"Rust", "Systems"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	stats, err := st.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Tags)
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   []string
		wantOK bool
	}{
		{"plain array", `["a","b"]`, []string{"a", "b"}, true},
		{"fenced json", "```json\n[\"a\"]\n```", []string{"a"}, true},
		{"fenced bare", "```\n[\"a\"]\n```", []string{"a"}, true},
		{"empty array", `[]`, []string{}, true},
		{"prose", "tags: a, b", []string{}, false},
		{"object", `{"tags":["a"]}`, []string{}, false},
		{"numbers", `[1,2]`, []string{}, false},
		{"null", `null`, []string{}, false},
		{"empty", ``, []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTags(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
