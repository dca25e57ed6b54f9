package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivity_Expressions(t *testing.T) {
	vars := Variables{"amount": 120, "country": "NL", "vip": true}

	tests := []struct {
		name    string
		act     *Activity
		want    any
		wantErr bool
	}{
		{"condition true", Condition("amount > 100 && vip"), true, false},
		{"condition false", Condition(`country == "US"`), false, false},
		{"condition on undefined", Condition("missing == nil"), true, false},
		{"condition not bool", Condition("country"), nil, true},
		{"evaluate", Evaluate("amount * 2"), 240, false},
		{"evaluate undefined", Evaluate("missing"), nil, false},
		{"evaluate runtime error", Evaluate("amount / missing.field"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.act.attempt(context.Background(), vars)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActivity_Assign(t *testing.T) {
	vars := Variables{"a": 2, "b": 3}
	got, err := Assign("sum", "a + b").attempt(context.Background(), vars)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.Equal(t, 5, vars["sum"])
}

func TestActivity_Validate(t *testing.T) {
	tests := []struct {
		name    string
		act     *Activity
		wantErr bool
	}{
		{"valid do", Do("x", func(context.Context, Variables) (any, error) { return nil, nil }), false},
		{"nil func", Do("x", nil), true},
		{"syntax error", Condition("amount >"), true},
		{"empty bookmark", WaitFor(""), true},
		{"bad retry", Assign("x", "1").WithRetry(RetryPolicy{MaxAttempts: 0}), true},
		{"negative timeout", Assign("x", "1").WithTimeout(-time.Second), true},
		{"valid wait", WaitFor("approve"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.act.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestActivity_ModifiersCopy(t *testing.T) {
	base := WaitFor("approve")
	derived := base.Into("ok").WithTimeout(time.Second).Named("approval")

	assert.Equal(t, "wait approve", base.Name())
	assert.Empty(t, base.into)
	assert.Zero(t, base.timeout)

	assert.Equal(t, "approval", derived.Name())
	assert.Equal(t, "approve", derived.Bookmark())
	assert.Equal(t, "ok", derived.into)
	assert.Equal(t, time.Second, derived.timeout)
}

func TestActivity_WaitCannotRunDirectly(t *testing.T) {
	_, err := WaitFor("approve").attempt(context.Background(), Variables{})
	require.Error(t, err)
}
