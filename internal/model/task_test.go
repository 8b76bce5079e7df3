package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/genimp/genimp/internal/model"
)

func TestTaskRuntime(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	end := start.Add(3 * time.Second)

	ended := model.Task{Name: "t", State: model.TaskStateCompleted, StartAt: start, EndAt: &end}
	runtime, ok := ended.Runtime()
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, runtime)

	running := model.Task{Name: "t", State: model.TaskStateRegistered, StartAt: start}
	_, ok = running.Runtime()
	assert.False(t, ok)
}

func TestTaskCompleted(t *testing.T) {
	assert.True(t, model.Task{State: model.TaskStateCompleted}.Completed())
	assert.False(t, model.Task{State: model.TaskStateRegistered}.Completed())
	assert.False(t, model.Task{State: model.TaskStateIncomplete}.Completed())
}

func TestChromosomeSets(t *testing.T) {
	autosomes := model.Autosomes()
	assert.Len(t, autosomes, 22)
	assert.Equal(t, "1", autosomes[0])
	assert.Equal(t, "22", autosomes[21])

	lengths := model.LengthChromosomes()
	assert.Len(t, lengths, 23)
	assert.Equal(t, "X", lengths[22])

	encodings := model.EncodingChromosomes()
	assert.Len(t, encodings, 24)
	assert.Equal(t, "23", encodings[22])
	assert.Equal(t, "24", encodings[23])
}
