package db

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapScript_RecordsSchemaVersion(t *testing.T) {
	script, err := bootstrapFS.ReadFile(bootstrapScript)
	require.NoError(t, err)

	want := fmt.Sprintf("INSERT INTO contexta_meta (version) VALUES (%d)", schemaVersion)
	assert.Contains(t, string(script), want)
}

func TestBootstrapScript_DefinesSearchFunctions(t *testing.T) {
	script, err := bootstrapFS.ReadFile(bootstrapScript)
	require.NoError(t, err)

	for _, fn := range []string{"match_knowledge_chunks(", "search_knowledge_by_keyword("} {
		assert.Contains(t, string(script), "CREATE OR REPLACE FUNCTION "+fn)
	}
	assert.NotContains(t, strings.ToUpper(string(script)), "DROP TABLE")
}
