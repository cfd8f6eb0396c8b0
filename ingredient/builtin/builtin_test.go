package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhaoFuheng/blendsql/ingredient"
	"github.com/ZhaoFuheng/blendsql/llmmodel"
)

func TestLLMMapGeneratesOneOutputPerRow(t *testing.T) {
	model := llmmodel.NewStatic(map[string]string{
		"Value: apple":  "yes",
		"Value: carrot": "no",
	}, "unknown")

	m := NewLLMMap(model)

	in := ingredient.Input{
		Args:   []ingredient.Arg{{Raw: "is a fruit?", Value: "is a fruit?"}},
		Values: []string{"apple", "carrot"},
	}

	result, err := m.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"yes", "no"}, result.MapColumn)
	assert.Equal(t, 2, result.Metadata["num_values_passed"])
}

func TestLLMMapIncludesExampleOutputsInPrompt(t *testing.T) {
	prompt := buildMapPrompt("is recent?", "2021", "", []string{"year >= 2020"})
	assert.Contains(t, prompt, "year >= 2020")
}

func TestArgStringSliceReadsExampleOutputsKwarg(t *testing.T) {
	in := ingredient.Input{
		Kwargs: map[string]ingredient.Arg{
			"example_outputs": {Raw: "year >= 2020", Value: []string{"year >= 2020"}},
		},
	}

	assert.Equal(t, []string{"year >= 2020"}, argStringSlice(in, "example_outputs"))
	assert.Nil(t, argStringSlice(in, "missing"))
}

func TestLLMMapDescriptorIsMapKind(t *testing.T) {
	m := NewLLMMap(llmmodel.NewStatic(nil, ""))
	assert.Equal(t, ingredient.MapKind, m.Descriptor().Kind)
}

func TestLLMQAAnswersFromContext(t *testing.T) {
	model := llmmodel.NewStatic(map[string]string{
		"Question: how many rows?": "2",
	}, "unknown")

	q := NewLLMQA(model)

	in := ingredient.Input{
		Args:   []ingredient.Arg{{Raw: "how many rows?", Value: "how many rows?"}},
		Values: []string{"a", "b"},
	}

	result, err := q.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "2", result.Scalar)
}

func TestLLMQAConstrainsAnswerToOptions(t *testing.T) {
	model := llmmodel.NewStatic(map[string]string{
		"Question: who scored?": "Frank",
	}, "unknown")

	q := NewLLMQA(model)

	in := ingredient.Input{
		Kwargs: map[string]ingredient.Arg{
			"question": {Raw: "who scored?", Value: "who scored?"},
			"options":  {Raw: "frank smith,jane doe", Value: "frank smith,jane doe"},
		},
	}

	result, err := q.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "frank smith", result.Scalar)
}

func TestConstrainToOptionsExactCaseInsensitiveMatch(t *testing.T) {
	got := constrainToOptions("YES", []string{"yes", "no"})
	assert.Equal(t, "yes", got)
}

func TestConstrainToOptionsFirstWordPrefixMatch(t *testing.T) {
	got := constrainToOptions("frank was the scorer", []string{"frank smith", "jane doe"})
	assert.Equal(t, "frank smith", got)
}

func TestConstrainToOptionsFallsBackWhenNoMatch(t *testing.T) {
	got := constrainToOptions("nobody", []string{"frank smith", "jane doe"})
	assert.Equal(t, "nobody", got)
}

func TestLLMJoinBuildsAlignmentMask(t *testing.T) {
	model := llmmodel.NewStatic(map[string]string{
		"Criteria: same person": "bob brown -> bob brown (ice hockey)\njane doe -> -",
	}, "")

	j := NewLLMJoin(model)

	in := ingredient.Input{
		Args:        []ingredient.Arg{{Raw: "same person", Value: "same person"}},
		LeftValues:  []string{"bob brown", "jane doe"},
		RightValues: []string{"bob brown (ice hockey)", "sue smith (tennis)"},
	}

	result, err := j.Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, result.Mask, 4)
	assert.True(t, result.Mask[0])
	assert.False(t, result.Mask[1])
	assert.False(t, result.Mask[2])
	assert.False(t, result.Mask[3])
}

func TestLLMJoinDefaultsQuestionWhenNotProvided(t *testing.T) {
	model := llmmodel.NewStatic(map[string]string{
		"Criteria: Join to same topics.": "x -> y",
	}, "")

	j := NewLLMJoin(model)

	in := ingredient.Input{
		LeftValues:  []string{"x"},
		RightValues: []string{"y"},
	}

	result, err := j.Run(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, result.Mask[0])
}

func TestParseJoinMappingSkipsMalformedLines(t *testing.T) {
	mapping := parseJoinMapping("a -> b\nnot a mapping line\n\nc -> d")
	assert.Equal(t, map[string]string{"a": "b", "c": "d"}, mapping)
}

func TestParseJoinMappingHandlesNanSentinel(t *testing.T) {
	mapping := parseJoinMapping("a -> -")
	assert.Equal(t, nanAnswer, mapping["a"])
}
