package scene

// Advance moves the frame counter of an instance object by AnimationScale
// frames according to its AnimationMode and updates AnimationState. Objects
// that are not instances or have no animation report NotAnimating.
func (o *Object) Advance() AnimationState {
	if !o.Instance || o.MaxFrame <= 0 {
		o.AnimationState = NotAnimating
		return o.AnimationState
	}
	step := o.AnimationScale
	switch o.AnimationMode {
	case Loop:
		o.Frame += step
		o.AnimationState = GoingForward
		if o.Frame > o.MaxFrame {
			o.Frame = 0
		}
	case InverseLoop:
		o.Frame -= step
		o.AnimationState = GoingBackward
		if o.Frame < 0 {
			o.Frame = o.MaxFrame
		}
	case GotoStart:
		o.Frame -= step
		o.AnimationState = GoingBackward
		if o.Frame < 0 {
			o.Frame = 0
			o.AnimationState = AtStart
		}
	case GotoEnd:
		o.Frame += step
		o.AnimationState = GoingForward
		if o.Frame > o.MaxFrame {
			o.Frame = o.MaxFrame
			o.AnimationState = AtEnd
		}
	}
	return o.AnimationState
}
