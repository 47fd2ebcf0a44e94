package appointments

import "time"

// Overlaps reports whether two half-open windows [aStart, aEnd) and
// [bStart, bEnd) intersect. Windows that only touch at an endpoint do not
// overlap, so back-to-back appointments are allowed.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// WorkingHours bounds the bookable day in the clinic's timezone.
type WorkingHours struct {
	StartHour int
	EndHour   int
}

// SlotStarts enumerates candidate slot start times for one calendar day in
// loc, stepping by slotMinutes inside the working hours. The last slot must
// still end by the closing hour.
func SlotStarts(date time.Time, hours WorkingHours, slotMinutes int, loc *time.Location) []time.Time {
	if slotMinutes <= 0 || loc == nil {
		return nil
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), hours.StartHour, 0, 0, 0, loc)
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), hours.EndHour, 0, 0, 0, loc)

	step := time.Duration(slotMinutes) * time.Minute
	var starts []time.Time
	for t := dayStart; !t.Add(step).After(dayEnd); t = t.Add(step) {
		starts = append(starts, t)
	}
	return starts
}

// FreeSlots filters the candidate starts of a day down to those whose window
// does not overlap any of the booked appointments. Booked rows are fetched
// once for the whole day; overlap is tested in memory.
func FreeSlots(date time.Time, hours WorkingHours, slotMinutes int, loc *time.Location, booked []Appointment) []time.Time {
	starts := SlotStarts(date, hours, slotMinutes, loc)
	step := time.Duration(slotMinutes) * time.Minute

	free := make([]time.Time, 0, len(starts))
	for _, start := range starts {
		end := start.Add(step)
		taken := false
		for i := range booked {
			if !booked[i].Status.ReservesSlot() {
				continue
			}
			if Overlaps(start, end, booked[i].ScheduledAt, booked[i].End()) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, start)
		}
	}
	return free
}
