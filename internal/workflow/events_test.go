package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

func TestEventEmitter_DeliversInOrder(t *testing.T) {
	e := NewEventEmitter(4, nil)
	e.Emit(Event{Type: EventStateChanged, TaskID: "a", State: models.StepRunning})
	e.Emit(Event{Type: EventChunkCommitted, TaskID: "a", Chunk: 0, Total: 2})

	first := <-e.Events()
	second := <-e.Events()
	assert.Equal(t, EventStateChanged, first.Type)
	assert.Equal(t, EventChunkCommitted, second.Type)
	assert.Zero(t, e.DroppedCount())
}

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1, nil)
	e.Emit(Event{Type: EventWarning})

	start := time.Now()
	e.Emit(Event{Type: EventWarning})
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "a full channel blocks briefly before dropping")
	assert.Equal(t, uint64(1), e.DroppedCount())
}

func TestEventEmitter_CloseIsIdempotent(t *testing.T) {
	e := NewEventEmitter(1, nil)
	e.Close()
	require.NotPanics(t, e.Close)

	_, ok := <-e.Events()
	assert.False(t, ok)
}

func TestCancelFlags(t *testing.T) {
	c := newCancelFlags()
	assert.False(t, c.isSet("sightsScout"))

	c.set("sightsScout")
	assert.True(t, c.isSet("sightsScout"))
	assert.False(t, c.isSet("foodScout"))

	c.set("")
	assert.True(t, c.isSet("foodScout"), "an empty id cancels everything")

	c.clear("sightsScout")
	assert.False(t, c.isSet("sightsScout"))
	assert.False(t, c.isSet("foodScout"))
}

func TestCorrection_Validate(t *testing.T) {
	assert.NoError(t, Correction{Keep: []string{"route-1"}, AdditionalVariants: 2}.Validate())
	assert.Error(t, Correction{AdditionalVariants: -1}.Validate())
	assert.Error(t, Correction{Keep: []string{" "}}.Validate())
	assert.Error(t, Correction{Keep: []string{"route-1", "route-1"}}.Validate())

	c := Correction{Feedback: "shorter", Keep: []string{"route-1"}, AdditionalVariants: 1}
	got, err := decodeCorrection(c.encode())
	require.NoError(t, err)
	assert.Equal(t, &c, got)

	none, err := decodeCorrection("")
	require.NoError(t, err)
	assert.Nil(t, none)
}
