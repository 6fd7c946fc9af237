package scene

import "testing"

func TestAdvance(t *testing.T) {
	tests := []struct {
		name      string
		mode      AnimationMode
		frame     float32
		wantFrame float32
		wantState AnimationState
	}{
		{"loop forward", Loop, 3, 4, GoingForward},
		{"loop wraps", Loop, 10, 0, GoingForward},
		{"inverse loop back", InverseLoop, 3, 2, GoingBackward},
		{"inverse loop wraps", InverseLoop, 0, 10, GoingBackward},
		{"goto start", GotoStart, 5, 4, GoingBackward},
		{"goto start clamps", GotoStart, 0, 0, AtStart},
		{"goto end", GotoEnd, 5, 6, GoingForward},
		{"goto end clamps", GotoEnd, 10, 10, AtEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewObject("inst", 0, 0)
			o.Instance = true
			o.MaxFrame = 10
			o.Frame = tt.frame
			o.AnimationMode = tt.mode
			if got := o.Advance(); got != tt.wantState {
				t.Errorf("state = %v, want %v", got, tt.wantState)
			}
			if o.Frame != tt.wantFrame {
				t.Errorf("frame = %v, want %v", o.Frame, tt.wantFrame)
			}
		})
	}
}

func TestAdvanceNotAnimating(t *testing.T) {
	o := NewObject("plain", 0, 0)
	o.MaxFrame = 10
	o.AnimationState = GoingForward
	if got := o.Advance(); got != NotAnimating || o.Frame != 0 {
		t.Errorf("non-instance: state %v frame %v", got, o.Frame)
	}

	o.Instance = true
	o.MaxFrame = 0
	if got := o.Advance(); got != NotAnimating {
		t.Errorf("zero max frame: state %v", got)
	}
}
