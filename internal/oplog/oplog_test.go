package oplog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogOperationLevels(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name  string
		err   error
		level zapcore.Level
	}{
		{name: "success", err: nil, level: zapcore.InfoLevel},
		{name: "business rejection", err: fmt.Errorf("%w: balance 3", marketplace.ErrInsufficientCredits), level: zapcore.WarnLevel},
		{name: "wrapped rejection", err: marketplace.WrapError("purchase", "service", "lock", marketplace.ErrLockTimeout), level: zapcore.WarnLevel},
		{name: "infrastructure failure", err: errors.New("connection reset"), level: zapcore.ErrorLevel},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			core, logs := observer.New(zapcore.DebugLevel)
			New(zap.New(core)).LogOperation(context.Background(), marketplace.OperationLog{
				Operation: "purchase",
				Status:    "error",
				Error:     testCase.err,
			})
			require.Equal(t, 1, logs.Len())
			assert.Equal(t, testCase.level, logs.All()[0].Level)
		})
	}
}

func TestLogOperationFields(t *testing.T) {
	t.Parallel()
	profileID, err := marketplace.NewProfileID("buyer-1")
	require.NoError(t, err)
	serviceID, err := marketplace.NewServiceID("service-1")
	require.NoError(t, err)
	amount, err := marketplace.NewCredits(40)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.InfoLevel)
	New(zap.New(core)).LogOperation(context.Background(), marketplace.OperationLog{
		Operation: "purchase",
		ProfileID: profileID,
		ServiceID: serviceID,
		Amount:    amount,
		Status:    "ok",
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "marketplace operation", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "purchase", fields["operation"])
	assert.Equal(t, "ok", fields["status"])
	assert.Equal(t, "buyer-1", fields["profile_id"])
	assert.Equal(t, "service-1", fields["service_id"])
	assert.Equal(t, int64(40), fields["amount"])
	assert.NotContains(t, fields, "reservation_id")
	assert.NotContains(t, fields, "topic")
	assert.NotContains(t, fields, "error")
}

func TestNewWithoutLogger(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		New(nil).LogOperation(context.Background(), marketplace.OperationLog{Operation: "notify", Status: "ok"})
	})
}

func TestIsBusinessError(t *testing.T) {
	t.Parallel()
	assert.True(t, IsBusinessError(marketplace.ErrAccessDenied))
	assert.True(t, IsBusinessError(fmt.Errorf("outer: %w", marketplace.ErrPaymentAlreadyConfirmed)))
	assert.False(t, IsBusinessError(errors.New("disk full")))
	assert.False(t, IsBusinessError(nil))
}
