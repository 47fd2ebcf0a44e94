package notify

import (
	"strings"
	"time"
)

// icsTimestamp is the UTC timestamp layout used in iCalendar files.
const icsTimestamp = "20060102T150405Z"

// ICSEvent describes one calendar invite.
type ICSEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Organizer   string
}

// BuildICS renders a single-event iCalendar file with the clinic's standard
// reminders: one alarm a day before and one an hour before the consultation.
func BuildICS(ev ICSEvent) []byte {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//Surecan//Clinic Booking//EN")
	line("CALSCALE:GREGORIAN")
	line("METHOD:REQUEST")
	line("BEGIN:VEVENT")
	line("UID:" + escapeICS(ev.UID))
	line("DTSTAMP:" + time.Now().UTC().Format(icsTimestamp))
	line("DTSTART:" + ev.Start.UTC().Format(icsTimestamp))
	line("DTEND:" + ev.End.UTC().Format(icsTimestamp))
	line("SUMMARY:" + escapeICS(ev.Summary))
	if ev.Description != "" {
		line("DESCRIPTION:" + escapeICS(ev.Description))
	}
	if ev.Location != "" {
		line("LOCATION:" + escapeICS(ev.Location))
	}
	if ev.Organizer != "" {
		line("ORGANIZER:mailto:" + ev.Organizer)
	}
	for _, trigger := range []string{"-PT24H", "-PT1H"} {
		line("BEGIN:VALARM")
		line("ACTION:DISPLAY")
		line("DESCRIPTION:" + escapeICS(ev.Summary))
		line("TRIGGER:" + trigger)
		line("END:VALARM")
	}
	line("END:VEVENT")
	line("END:VCALENDAR")

	return []byte(b.String())
}

func escapeICS(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
		"\r", "",
	)
	return r.Replace(s)
}
