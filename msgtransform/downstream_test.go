package msgtransform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/streampipe/message"
	"goa.design/streampipe/msgtransform"
	"goa.design/streampipe/streampipeerr"
)

func TestDownstream_AssignsDenseOrderAcrossCompleteMessages(t *testing.T) {
	d := msgtransform.NewDownstream()

	out1, err := d.Assign(message.Text{Text: "a"})
	require.NoError(t, err)
	out2, err := d.Assign(message.Reasoning{Text: "b"})
	require.NoError(t, err)

	assert.Equal(t, 0, out1[0].GetHeader().Order())
	assert.Equal(t, 1, out2[0].GetHeader().Order())
}

func TestDownstream_ExpandsToolsCallIntoOneOrderPerCall(t *testing.T) {
	d := msgtransform.NewDownstream()
	out, err := d.Assign(message.ToolsCall{ToolCalls: []message.ToolCall{{FunctionName: "a"}, {FunctionName: "b"}}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].GetHeader().Order())
	assert.Equal(t, 1, out[1].GetHeader().Order())
}

func TestDownstream_SameIdentityUpdatesShareOrderAndIncrementChunk(t *testing.T) {
	d := msgtransform.NewDownstream()
	out1, err := d.Assign(message.TextUpdate{Text: "he"})
	require.NoError(t, err)
	out2, err := d.Assign(message.TextUpdate{Text: "llo"})
	require.NoError(t, err)

	assert.Equal(t, 0, out1[0].GetHeader().Order())
	assert.Equal(t, 0, out1[0].GetHeader().Chunk())
	assert.Equal(t, 0, out2[0].GetHeader().Order())
	assert.Equal(t, 1, out2[0].GetHeader().Chunk())
}

func TestDownstream_IdentityChangeBumpsOrderAndResetsChunk(t *testing.T) {
	d := msgtransform.NewDownstream()
	_, err := d.Assign(message.TextUpdate{Text: "he"})
	require.NoError(t, err)
	out, err := d.Assign(message.ReasoningUpdate{Text: "thinking"})
	require.NoError(t, err)

	assert.Equal(t, 1, out[0].GetHeader().Order())
	assert.Equal(t, 0, out[0].GetHeader().Chunk())
}

func TestDownstream_ToolCallUpdateIdentityTracksCallID(t *testing.T) {
	d := msgtransform.NewDownstream()
	out1, err := d.Assign(message.ToolCallUpdate{ToolCallID: "a", FunctionArgs: `{"x":`})
	require.NoError(t, err)
	out2, err := d.Assign(message.ToolCallUpdate{ToolCallID: "b", FunctionArgs: `{}`})
	require.NoError(t, err)

	assert.Equal(t, 0, out1[0].GetHeader().Order())
	assert.Equal(t, 1, out2[0].GetHeader().Order())
}

func TestDownstream_CompositeIsInvariantViolated(t *testing.T) {
	d := msgtransform.NewDownstream()
	_, err := d.Assign(message.Composite{})
	require.Error(t, err)
	var spErr *streampipeerr.Error
	require.ErrorAs(t, err, &spErr)
	assert.Equal(t, streampipeerr.KindInvariantViolated, spErr.Kind)
}

func TestDownstream_ToolsCallAggregateIsInvariantViolated(t *testing.T) {
	d := msgtransform.NewDownstream()
	_, err := d.Assign(message.ToolsCallAggregate{})
	require.Error(t, err)
	var spErr *streampipeerr.Error
	require.ErrorAs(t, err, &spErr)
	assert.Equal(t, streampipeerr.KindInvariantViolated, spErr.Kind)
}
