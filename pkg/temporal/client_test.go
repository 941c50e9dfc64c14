package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultActivityOptions_CallerErrorsAreNotRetried(t *testing.T) {
	opts := DefaultActivityOptions()

	require.NotNil(t, opts.RetryPolicy)
	assert.Equal(t, 5*time.Minute, opts.StartToCloseTimeout)
	assert.Equal(t, int32(3), opts.RetryPolicy.MaximumAttempts)
	assert.ElementsMatch(t, []string{"ValidationError", "NotFoundError"}, opts.RetryPolicy.NonRetryableErrorTypes)
}

func TestDefaultConfig_UsesReconciliationQueue(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, TaskQueues.Reconciliation, cfg.TaskQueue)
	assert.Equal(t, "default", cfg.Namespace)

	worker := DefaultWorkerOptions(cfg.TaskQueue)
	assert.Equal(t, cfg.TaskQueue, worker.TaskQueue)
	assert.Positive(t, worker.MaxConcurrentActivities)
}
