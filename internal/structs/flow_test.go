package structs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockRoundTrip(t *testing.T) {
	in := Block{
		ID:     "b1",
		Type:   BlockQuestion,
		Title:  "Hair loss",
		Active: true,
		Question: &QuestionData{Question: Question{
			ID:              "q1",
			Prompt:          "Are you experiencing hair loss?",
			AnswerType:      AnswerBoolean,
			TagRules:        map[string][]Tag{"true": {"queda_moderada"}},
			HardStopAnswers: []string{"false"},
		}},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Block
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestBlockActiveDefaultsTrue(t *testing.T) {
	var b Block
	require.NoError(t, json.Unmarshal([]byte(`{"id":"b1","type":"checkout"}`), &b))
	assert.True(t, b.Active)
	require.NotNil(t, b.Checkout)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"b1","type":"checkout","active":false}`), &b))
	assert.False(t, b.Active)
}

func TestBlockUnknownType(t *testing.T) {
	var b Block
	err := json.Unmarshal([]byte(`{"id":"b1","type":"teleport"}`), &b)
	assert.ErrorContains(t, err, "unknown block type")

	_, err = json.Marshal(Block{ID: "b1", Type: "teleport"})
	assert.ErrorContains(t, err, "unknown block type")
}

func TestGroupBlockNesting(t *testing.T) {
	doc := `{
		"id": "g1", "type": "group", "title": "Lifestyle",
		"data": {"blocks": [
			{"id": "q1", "type": "question", "data": {"question": {"id": "smoking", "prompt": "Do you smoke?", "answerType": "boolean"}}},
			{"id": "t1", "type": "tag", "data": {"tags": ["lifestyle"]}}
		]}
	}`

	var b Block
	require.NoError(t, json.Unmarshal([]byte(doc), &b))
	require.NotNil(t, b.Group)
	require.Len(t, b.Group.Blocks, 2)
	assert.Equal(t, "smoking", b.Group.Blocks[0].Question.Question.ID)
	assert.Equal(t, []Tag{"lifestyle"}, b.Group.Blocks[1].Tag.Tags)
	assert.True(t, b.Group.Blocks[0].Active)
}
