package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"", ModeSQLite},
		{"sqlite", ModeSQLite},
		{"SQLite", ModeSQLite},
		{" supabase ", ModeSupabase},
		{"both", ModeDual},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseMode("postgres")
	assert.Error(t, err)
}

func TestSelectorSQLiteMode(t *testing.T) {
	s := NewSelector(ModeSQLite, false)
	assert.Equal(t, SQLite, s.PrimaryForReads())
	assert.Equal(t, []ID{SQLite}, s.WriteTargets())
	assert.False(t, s.IsDualWrite())
}

func TestSelectorSupabaseMode(t *testing.T) {
	s := NewSelector(ModeSupabase, false)
	assert.Equal(t, Supabase, s.PrimaryForReads())
	assert.Equal(t, []ID{Supabase}, s.WriteTargets())
	assert.False(t, s.IsDualWrite())
}

func TestSelectorDualModeReadsStayOnSQLite(t *testing.T) {
	s := NewSelector(ModeDual, false)
	assert.Equal(t, SQLite, s.PrimaryForReads())
	assert.Equal(t, []ID{SQLite, Supabase}, s.WriteTargets(), "primary must come first")
	assert.True(t, s.IsDualWrite())
}

func TestServerlessForcesSupabase(t *testing.T) {
	for _, mode := range []Mode{ModeSQLite, ModeDual, ModeSupabase} {
		s := NewSelector(mode, true)
		assert.Equal(t, ModeSupabase, s.Mode(), string(mode))
		assert.Equal(t, Supabase, s.PrimaryForReads())
		assert.Equal(t, []ID{Supabase}, s.WriteTargets())
	}
}

func TestDetectServerless(t *testing.T) {
	for _, name := range serverlessEnvVars {
		t.Setenv(name, "")
	}
	assert.False(t, DetectServerless())

	t.Setenv("VERCEL", "1")
	assert.True(t, DetectServerless())
}
