package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient answers enqueues from errs in order. The last error
// repeats; a trailing nil means success from then on.
type scriptedClient struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (c *scriptedClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.errs) == 0 {
		return &asynq.TaskInfo{Type: task.Type()}, nil
	}
	err := c.errs[0]
	if len(c.errs) > 1 {
		c.errs = c.errs[1:]
	} else if err == nil {
		c.errs = nil
	}
	return nil, err
}

func (c *scriptedClient) Close() error { return nil }

// scriptedInspector reports states in order; the last one repeats.
type scriptedInspector struct {
	mu      sync.Mutex
	states  []asynq.TaskState
	deleted []string
}

func (i *scriptedInspector) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if queue != "default" || len(i.states) == 0 {
		return nil, asynq.ErrTaskNotFound
	}
	st := i.states[0]
	if len(i.states) > 1 {
		i.states = i.states[1:]
	}
	return &asynq.TaskInfo{ID: id, Queue: queue, State: st}, nil
}

func (i *scriptedInspector) DeleteTask(queue, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deleted = append(i.deleted, queue+"/"+id)
	return nil
}

func (i *scriptedInspector) Close() error { return nil }

func newScriptedQueue(client *scriptedClient, inspector *scriptedInspector) *Queue {
	return &Queue{
		client:     client,
		inspector:  inspector,
		cfg:        DefaultConfig(),
		logger:     zerolog.Nop(),
		activeWait: 100 * time.Millisecond,
		activePoll: 5 * time.Millisecond,
	}
}

func TestQueueEnqueue_TaskIDConflicts(t *testing.T) {
	conflict := asynq.ErrTaskIDConflict
	tests := []struct {
		name        string
		errs        []error
		states      []asynq.TaskState
		wantErr     error
		wantCalls   int
		wantDeleted int
	}{
		{
			name:      "no conflict",
			wantCalls: 1,
		},
		{
			name:      "pending task is kept",
			errs:      []error{conflict},
			states:    []asynq.TaskState{asynq.TaskStatePending},
			wantCalls: 1,
		},
		{
			name:      "retrying task is kept",
			errs:      []error{conflict},
			states:    []asynq.TaskState{asynq.TaskStateRetry},
			wantCalls: 1,
		},
		{
			name:        "archived task is replaced",
			errs:        []error{conflict, nil},
			states:      []asynq.TaskState{asynq.TaskStateArchived},
			wantCalls:   2,
			wantDeleted: 1,
		},
		{
			name:      "active task that finishes is requeued",
			errs:      []error{conflict, conflict, nil},
			states:    []asynq.TaskState{asynq.TaskStateActive, asynq.TaskStateActive},
			wantCalls: 3,
		},
		{
			name:    "active task that keeps running fails the enqueue",
			errs:    []error{conflict},
			states:  []asynq.TaskState{asynq.TaskStateActive},
			wantErr: ErrTaskActive,
		},
		{
			name:      "broker failure",
			errs:      []error{errors.New("connection refused")},
			wantErr:   errors.New("connection refused"),
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedClient{errs: tt.errs}
			inspector := &scriptedInspector{states: tt.states}
			q := newScriptedQueue(client, inspector)

			err := q.EnqueuePublish(context.Background(), 7, "https://cdn.example.test")
			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
			case errors.Is(tt.wantErr, ErrTaskActive):
				require.ErrorIs(t, err, ErrTaskActive)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}
			if tt.wantCalls > 0 {
				assert.Equal(t, tt.wantCalls, client.calls)
			}
			assert.Len(t, inspector.deleted, tt.wantDeleted)
		})
	}
}

func TestQueueEnqueue_ActiveWaitHonoursContext(t *testing.T) {
	client := &scriptedClient{errs: []error{asynq.ErrTaskIDConflict}}
	inspector := &scriptedInspector{states: []asynq.TaskState{asynq.TaskStateActive}}
	q := newScriptedQueue(client, inspector)
	q.activeWait = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := q.EnqueuePublish(ctx, 7, "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
