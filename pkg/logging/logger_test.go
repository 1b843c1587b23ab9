package logging

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestLoggerDefaultsToStandard(t *testing.T) {
	assert.Equal(t, logrus.StandardLogger(), Logger(context.Background()))
}

func TestComponentLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ctx := WithLogger(context.Background(), logger)

	Component(ctx, "label-roi").Warn("missing label")

	entry := hook.LastEntry()
	if assert.NotNil(t, entry) {
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, "label-roi", entry.Data["component"])
		assert.Equal(t, "missing label", entry.Message)
	}
}
