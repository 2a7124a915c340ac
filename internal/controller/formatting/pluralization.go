package formatting

import "fmt"

// Pluralize picks the singular or plural noun for count
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// CountStudents renders "1 student" or "3 students"
func CountStudents(count int) string {
	return fmt.Sprintf("%d %s", count, Pluralize(count, "student", "students"))
}

// CountBookings renders "1 booking" or "3 bookings"
func CountBookings(count int) string {
	return fmt.Sprintf("%d %s", count, Pluralize(count, "booking", "bookings"))
}
