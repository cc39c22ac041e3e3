package chunking

// Thresholds bound child and parent passages in tokens. A group closes when
// its size lands in [Min, Max] or grows beyond Max+Overflow.
type Thresholds struct {
	ChildMin      int
	ChildMax      int
	ChildOverflow int
	HeadingMax    int

	ParentMin      int
	ParentMax      int
	ParentOverflow int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ChildMin:      200,
		ChildMax:      380,
		ChildOverflow: 80,
		HeadingMax:    40,

		ParentMin:      850,
		ParentMax:      1250,
		ParentOverflow: 120,
	}
}

func (t Thresholds) normalize() Thresholds {
	out := t
	def := DefaultThresholds()
	if out.ChildMin <= 0 {
		out.ChildMin = def.ChildMin
	}
	if out.ChildMax < out.ChildMin {
		out.ChildMax = out.ChildMin
	}
	if out.ChildOverflow < 0 {
		out.ChildOverflow = 0
	}
	if out.HeadingMax < 0 {
		out.HeadingMax = 0
	}
	if out.ParentMin <= 0 {
		out.ParentMin = def.ParentMin
	}
	if out.ParentMax < out.ParentMin {
		out.ParentMax = out.ParentMin
	}
	if out.ParentOverflow < 0 {
		out.ParentOverflow = 0
	}
	return out
}

func closes(tokens, lo, hi, overflow int) bool {
	return (tokens >= lo && tokens <= hi) || tokens > hi+overflow
}
