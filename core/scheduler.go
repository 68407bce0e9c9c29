package core

// Timer is a scheduled event on a TimerList
type Timer struct {
	WakeTime uint64
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// TimerList is a wake-time ordered list of timers. Hosted builds use it to
// deliver the periodic tick and delayed conversion completions in virtual
// time; handlers run one at a time from Dispatch.
type TimerList struct {
	head *Timer
	now  uint64
}

// Schedule inserts a timer in wake-time order. Timers with equal wake times
// fire in the order they were scheduled.
func (l *TimerList) Schedule(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	l.insert(t)
}

func (l *TimerList) insert(t *Timer) {
	if l.head == nil || t.WakeTime < l.head.WakeTime {
		t.Next = l.head
		l.head = t
		return
	}

	current := l.head
	for current.Next != nil && current.Next.WakeTime <= t.WakeTime {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// NextWake returns the earliest wake time and whether any timer is pending
func (l *TimerList) NextWake() (uint64, bool) {
	if l.head == nil {
		return 0, false
	}
	return l.head.WakeTime, true
}

// Now returns the time of the last Dispatch
func (l *TimerList) Now() uint64 {
	return l.now
}

// Dispatch runs every timer with WakeTime <= now, including timers that
// handlers schedule for a time already due
func (l *TimerList) Dispatch(now uint64) int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	l.now = now
	fired := 0
	for l.head != nil && l.head.WakeTime <= now {
		timer := l.head
		l.head = timer.Next
		timer.Next = nil

		fired++
		if timer.Handler(timer) == SF_RESCHEDULE {
			l.insert(timer)
		}
	}
	return fired
}

// Cancel removes a timer if it is pending
func (l *TimerList) Cancel(t *Timer) bool {
	if l.head == t {
		l.head = t.Next
		t.Next = nil
		return true
	}
	for current := l.head; current != nil; current = current.Next {
		if current.Next == t {
			current.Next = t.Next
			t.Next = nil
			return true
		}
	}
	return false
}
