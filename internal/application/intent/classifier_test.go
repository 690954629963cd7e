package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-rag-api/internal/domain/entity"
)

func TestClassify(t *testing.T) {
	c, err := NewClassifier(DefaultKeywords())
	require.NoError(t, err)

	tests := []struct {
		name  string
		query string
		want  []entity.Department
	}{
		{"single department", "What was our Q4 revenue?", []entity.Department{entity.DepartmentFinance}},
		{"case insensitive", "Show me the BUDGET", []entity.Department{entity.DepartmentFinance}},
		{"suffix variation", "list all recent campaigns", []entity.Department{entity.DepartmentMarketing}},
		{"multi word keyword across whitespace", "summarise the cash\n  flow", []entity.Department{entity.DepartmentFinance}},
		{
			"several departments in fixed order",
			"How does payroll affect the marketing budget?",
			[]entity.Department{entity.DepartmentFinance, entity.DepartmentMarketing, entity.DepartmentHR},
		},
		{"unclassified", "What time does the office open?", nil},
		{"keyword must start at a word boundary", "the nontaxable part", nil},
		{"blank query", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.query)
			assert.Equal(t, tt.want, got.Departments)
			assert.Equal(t, len(tt.want) == 0, got.IsUnclassified())
		})
	}
}

func TestClassify_RecordsMatches(t *testing.T) {
	c, err := NewClassifier(map[string][]string{"finance": {"revenue", "profit"}})
	require.NoError(t, err)

	got := c.Classify("revenue and profit")
	assert.ElementsMatch(t, []string{"revenue", "profit"}, got.Matches[entity.DepartmentFinance])
}

func TestNewClassifier_RejectsInvalidTables(t *testing.T) {
	_, err := NewClassifier(map[string][]string{"legal": {"contract"}})
	require.ErrorIs(t, err, ErrInvalidKeywords)
	assert.Contains(t, err.Error(), `unknown department "legal"`)

	_, err = NewClassifier(map[string][]string{"hr": {"  "}})
	require.ErrorIs(t, err, ErrInvalidKeywords)
	assert.Contains(t, err.Error(), "blank keyword")
}

func TestFromConfig_FallsBackToDefaults(t *testing.T) {
	c, err := FromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultKeywords()["hr"], c.Keywords(entity.DepartmentHR))

	c, err = FromConfig(map[string][]string{"engineering": {"Kubernetes"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"kubernetes"}, c.Keywords(entity.DepartmentEngineering))
	assert.True(t, c.Classify("revenue").IsUnclassified())
}

func TestClassify_NilClassifier(t *testing.T) {
	var c *Classifier
	assert.True(t, c.Classify("revenue").IsUnclassified())
}
