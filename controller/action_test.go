package controller

import (
	"testing"
	"time"
)

func TestActionConstructors(t *testing.T) {
	tests := []struct {
		name     string
		action   Action
		expected Action
	}{
		{
			name:     "done",
			action:   Done(),
			expected: Action{},
		},
		{
			name:     "requeue",
			action:   Requeue(),
			expected: Action{Requeue: true},
		},
		{
			name:     "requeue after",
			action:   RequeueAfter(5 * time.Second),
			expected: Action{RequeueAfter: 5 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.action != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, tt.action)
			}
		})
	}
}

func TestZeroActionMeansSettled(t *testing.T) {
	var action Action
	if action.Requeue || action.RequeueAfter != 0 {
		t.Errorf("zero Action should be settled, got %+v", action)
	}
	if action != Done() {
		t.Error("zero Action should equal Done()")
	}
}
