package models

// Weekday names a school day. Saturday is a legal value for manual
// assignments and availability records, but automatic generation only
// fills Monday through Friday.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
)

var weekdayOrder = map[Weekday]int{
	Monday:    1,
	Tuesday:   2,
	Wednesday: 3,
	Thursday:  4,
	Friday:    5,
	Saturday:  6,
}

// AllWeekdays lists every legal weekday in chronological order.
func AllWeekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}
}

// GenerationWeekdays lists the days the generator fills, in fixed order.
func GenerationWeekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}
}

// Order returns the chronological index of the weekday (1 = Monday),
// or 0 for an unknown value.
func (w Weekday) Order() int {
	return weekdayOrder[w]
}

// Valid reports whether the weekday is one of the six legal values.
func (w Weekday) Valid() bool {
	return weekdayOrder[w] != 0
}
