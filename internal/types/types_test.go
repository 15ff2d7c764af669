package types

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "no base url", modify: func(c *Config) { c.BaseURL = "" }, want: ErrNoBaseURL},
		{name: "zero wait", modify: func(c *Config) { c.WaitTimeout = 0 }, want: ErrInvalidWaitTimeout},
		{name: "negative settle", modify: func(c *Config) { c.PageSettleDelay = -1 }, want: ErrInvalidSettleDelay},
		{name: "negative retries", modify: func(c *Config) { c.ExhaustionRechecks = -1 }, want: ErrInvalidRetries},
		{name: "missing selector", modify: func(c *Config) { c.Selectors.NextPage = "" }, want: ErrMissingSelector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)

			err := c.Validate()

			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestControlStateUsable(t *testing.T) {
	assert.True(t, ControlState{Present: true, Displayed: true, Enabled: true}.Usable())
	assert.False(t, ControlState{Present: true, Displayed: true}.Usable())
	assert.False(t, ControlState{Present: true, Enabled: true}.Usable())
	assert.False(t, ControlState{}.Usable())
}

func TestRunSummary(t *testing.T) {
	summary := RunSummary{Results: []TargetResult{
		{Target: "A", Status: StatusSuccess},
		{Target: "B", Status: StatusSuccess},
	}}
	assert.False(t, summary.Failed())
	assert.Equal(t, 2, summary.Count(StatusSuccess))

	summary.Results = append(summary.Results, TargetResult{Target: "C", Status: StatusPartial})
	assert.True(t, summary.Failed())
	assert.Equal(t, 1, summary.Count(StatusPartial))
	assert.Equal(t, 0, summary.Count(StatusFailed))
}

func TestErrorsUnwrap(t *testing.T) {
	startErr := &SessionStartError{Err: context.DeadlineExceeded}
	assert.ErrorIs(t, startErr, ErrSessionStart)
	assert.ErrorIs(t, startErr, context.DeadlineExceeded)

	navErr := &NavigationError{Target: "NABIL", Step: "wait for table", Err: ErrTableNotFound}
	assert.ErrorIs(t, navErr, ErrTableNotFound)
	assert.Contains(t, navErr.Error(), "NABIL")

	failure := &ExtractionFailure{Target: "NABIL", Page: 4, Err: ErrShapeMismatch}
	var target *ExtractionFailure
	assert.True(t, errors.As(error(failure), &target))
	assert.Equal(t, 4, target.Page)
	assert.ErrorIs(t, failure, ErrShapeMismatch)
}
