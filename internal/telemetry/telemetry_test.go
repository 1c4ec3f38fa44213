package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTask_CountsByResult(t *testing.T) {
	okBefore := testutil.ToFloat64(TaskRunsTotal.WithLabelValues("test-task", "ok"))
	errBefore := testutil.ToFloat64(TaskRunsTotal.WithLabelValues("test-task", "error"))

	ObserveTask("test-task", 0.01, nil)
	ObserveTask("test-task", 0.02, errors.New("offline"))
	ObserveTask("test-task", 0.03, nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(TaskRunsTotal.WithLabelValues("test-task", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(TaskRunsTotal.WithLabelValues("test-task", "error")))
}

func TestStartSpan_NoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "walletcore.test")

	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
	EndSpan(span, nil)
}
