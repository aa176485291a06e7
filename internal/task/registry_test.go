package task

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := signallingRegistry(make(chan uuid.UUID, 1))

	assert.True(t, reg.Has("mock"))
	assert.False(t, reg.Has("other"))

	id := uuid.New()
	task, err := reg.Build(id, "mock", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, id, task.ID())
	assert.Equal(t, []byte("payload"), task.Payload())

	_, err = reg.Build(id, "other", nil)
	assert.ErrorIs(t, err, ErrUnknownTaskType)

	stored := &storedTask{baseTask: baseTask{id: id, taskType: "mock", payload: []byte("p")}}
	rebuilt, err := reg.Rebuild(stored)
	require.NoError(t, err)
	assert.Equal(t, id, rebuilt.ID())
	assert.IsType(t, &mockTask{}, rebuilt)
}
