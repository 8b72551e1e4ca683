package navigation

// Stack is the back stack. It is never empty.
type Stack struct {
	entries []Screen
}

// NewStack creates a stack holding only start.
func NewStack(start Screen) *Stack {
	return &Stack{entries: []Screen{start}}
}

// Current returns the top entry.
func (s *Stack) Current() Screen {
	return s.entries[len(s.entries)-1]
}

// Entries returns a copy of the stack, bottom first.
func (s *Stack) Entries() []Screen {
	return append([]Screen(nil), s.entries...)
}

// Push adds dest on top.
func (s *Stack) Push(dest Screen) {
	s.entries = append(s.entries, dest)
}

// Pop removes the top entry. It refuses to remove the last one and reports
// whether anything was popped.
func (s *Stack) Pop() bool {
	if len(s.entries) <= 1 {
		return false
	}
	s.entries = s.entries[:len(s.entries)-1]
	return true
}

// PopUpTo removes entries above the topmost entry with route, and that entry
// too when inclusive. It does nothing if route is not on the stack.
func (s *Stack) PopUpTo(route Route, inclusive bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Route != route {
			continue
		}
		if inclusive {
			s.entries = s.entries[:i]
		} else {
			s.entries = s.entries[:i+1]
		}
		return
	}
}

// Replace pops up to route inclusively and then pushes dest, so back
// navigation can no longer reach route. dest is not duplicated if it is
// already on top afterwards.
func (s *Stack) Replace(dest Screen, route Route) {
	s.PopUpTo(route, true)
	if len(s.entries) > 0 && s.Current() == dest {
		return
	}
	s.Push(dest)
}

// Reset leaves only start on the stack.
func (s *Stack) Reset(start Screen) {
	s.entries = []Screen{start}
}
