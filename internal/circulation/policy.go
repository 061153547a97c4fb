package circulation

import (
	"time"

	"booklending/internal/clock"
)

const (
	DefaultMaxOpenCheckouts = 3
	DefaultCooldownDays     = 14
	DefaultPagesPerDay      = 25
)

// Policy holds the tunable numbers of the lending rules.
type Policy struct {
	// MaxOpenCheckouts caps simultaneous open checkouts per borrower. Zero disables the cap.
	MaxOpenCheckouts int
	// CooldownDays is the minimum gap between returning a book and borrowing it again. Zero disables it.
	CooldownDays int
	// PagesPerDay is the assumed reading rate used for scheduled return dates.
	PagesPerDay int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxOpenCheckouts: DefaultMaxOpenCheckouts,
		CooldownDays:     DefaultCooldownDays,
		PagesPerDay:      DefaultPagesPerDay,
	}
}

// ReadingDays is ceil(pageCount / PagesPerDay). Non-positive page counts need no days.
func (p Policy) ReadingDays(pageCount int) int {
	if pageCount <= 0 {
		return 0
	}
	rate := p.PagesPerDay
	if rate <= 0 {
		rate = DefaultPagesPerDay
	}
	days := pageCount / rate
	if pageCount%rate != 0 {
		days++
	}
	return days
}

// ReturnDate is the scheduled return date of a book borrowed on today.
func (p Policy) ReturnDate(today time.Time, pageCount int) time.Time {
	return clock.Date(today).AddDate(0, 0, p.ReadingDays(pageCount))
}

// ReturnDate applies the default reading rate of 25 pages per day.
func ReturnDate(today time.Time, pageCount int) time.Time {
	return DefaultPolicy().ReturnDate(today, pageCount)
}

// daysBetween counts calendar days from a to b. Both must be dates.
func daysBetween(a, b time.Time) int {
	return int(clock.Date(b).Sub(clock.Date(a)).Hours() / 24)
}
