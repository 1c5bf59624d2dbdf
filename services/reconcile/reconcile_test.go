package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReconciler struct {
	n     int64
	err   error
	calls int
}

func (f *fakeReconciler) ReconcileProfileLinks(context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

func TestHandler(t *testing.T) {
	r := &fakeReconciler{n: 2}
	h := Handler(r, zap.NewNop())

	require.NoError(t, h.ProcessTask(context.Background(), NewTask()))
	assert.Equal(t, 1, r.calls)

	r.err = errors.New("db down")
	err := h.ProcessTask(context.Background(), NewTask())
	assert.ErrorIs(t, err, r.err)
}

func TestNewTask(t *testing.T) {
	task := NewTask()
	assert.Equal(t, TaskType, task.Type())
	assert.Empty(t, task.Payload())
}

func TestNewWorker_Config(t *testing.T) {
	_, err := NewWorker("", time.Minute, &fakeReconciler{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewWorker("redis://localhost:6379/0", 0, &fakeReconciler{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewWorker("ftp://localhost", time.Minute, &fakeReconciler{}, zap.NewNop())
	assert.Error(t, err)

	w, err := NewWorker("redis://localhost:6379/0", time.Minute, &fakeReconciler{}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, w)
}
