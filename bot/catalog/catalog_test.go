package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answerMap map[string]string

func (m answerMap) Text(key string) string { return m[key] }

func TestShippedCatalogsValidate(t *testing.T) {
	require.NoError(t, ValidateAll())
}

func TestForRole(t *testing.T) {
	c, ok := ForRole(RoleDesigner)
	require.True(t, ok)
	assert.Equal(t, RoleDesigner, c.Role)

	_, ok = ForRole("plumber")
	assert.False(t, ok)
}

func TestPromptFnUsesEarlierAnswer(t *testing.T) {
	c, ok := ForRole(RoleInfluencer)
	require.True(t, ok)

	var confirm Question
	for _, q := range c.Questions {
		if q.Key == "name_confirmation" {
			confirm = q
		}
	}
	require.NotNil(t, confirm.PromptFn)
	prompt := confirm.PromptFn(answerMap{KeyFullName: "Ada Obi"})
	assert.Contains(t, prompt, "Ada Obi")
}

func TestValidateRejectsMisplacedFinal(t *testing.T) {
	c := &Catalog{
		Role: "broken",
		Questions: []Question{
			{Key: "end", Kind: KindFinal, Prompt: "bye"},
			{Key: "name", Kind: KindText, Prompt: "name?"},
		},
	}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsForwardReference(t *testing.T) {
	c := &Catalog{
		Role: "broken",
		Questions: []Question{
			{
				Key:      "confirm",
				Kind:     KindConfirmation,
				PromptFn: func(a Answers) string { return a.Text("name") },
				Uses:     []string{"name"},
				Buttons:  []Button{{Label: "YES", Value: ConfirmYes}},
			},
			{Key: "name", Kind: KindText, Prompt: "name?"},
			{Key: "end", Kind: KindFinal, Prompt: "bye"},
		},
	}
	assert.Error(t, c.Validate())
}

func TestDisqualifyingConfirmationIsMarked(t *testing.T) {
	c, _ := ForRole(RoleInfluencer)
	found := false
	for _, q := range c.Questions {
		if q.Key == "cac_certificate" {
			found = true
			assert.True(t, q.Disqualify)
			assert.Equal(t, KindConfirmation, q.Kind)
		}
	}
	require.True(t, found)
}
