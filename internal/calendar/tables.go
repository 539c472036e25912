package calendar

import (
	"time"

	"futuresflow/models"
)

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Default returns the exchange calendar used in production.
//
// Online: Mon-Fri 00:00-03:00 and 08:30-15:15, Thursday 20:30-24:00,
// Friday 21:00-24:00, Saturday 00:00-03:00.
// Closing: Monday 15:15-15:45, Tue-Fri 03:00-03:30 and 15:15-15:45,
// Saturday 03:00-03:30. Closing frames start where online frames end.
func Default() *Calendar {
	online := Table{}
	for _, d := range weekdays {
		online[d] = []Frame{{At(0, 0), At(3, 0)}, {At(8, 30), At(15, 15)}}
	}
	online[time.Thursday] = append(online[time.Thursday], Frame{At(20, 30), endOfDay})
	online[time.Friday] = append(online[time.Friday], Frame{At(21, 0), endOfDay})
	online[time.Saturday] = []Frame{{At(0, 0), At(3, 0)}}

	closing := Table{
		time.Monday:   {{At(15, 15), At(15, 45)}},
		time.Saturday: {{At(3, 0), At(3, 30)}},
	}
	for _, d := range weekdays[1:] {
		closing[d] = []Frame{{At(3, 0), At(3, 30)}, {At(15, 15), At(15, 45)}}
	}

	return &Calendar{
		Online:   online,
		Closing:  closing,
		Sessions: defaultSessions(),
	}
}

func defaultSessions() map[models.TradingTimeFrameType]Table {
	indexDay := []Frame{{At(9, 30), At(11, 30)}, {At(13, 0), At(15, 0)}}
	futuresDay := []Frame{{At(9, 0), At(10, 15)}, {At(10, 30), At(11, 30)}, {At(13, 30), At(15, 0)}}

	build := func(day []Frame, night *Frame, tail *Frame) Table {
		tb := Table{}
		for _, d := range weekdays {
			tb[d] = append(tb[d], day...)
			if night != nil {
				tb[d] = append(tb[d], *night)
			}
			if tail != nil {
				// the night session of d continues after midnight on d+1
				next := (d + 1) % 7
				tb[next] = append(tb[next], *tail)
			}
		}
		return tb
	}

	return map[models.TradingTimeFrameType]Table{
		models.IndexDayOnly:            build(indexDay, nil, nil),
		models.FuturesDayOnly:          build(futuresDay, nil, nil),
		models.FuturesDayNight:         build(futuresDay, &Frame{At(21, 0), At(23, 0)}, nil),
		models.FuturesDayOvernight:     build(futuresDay, &Frame{At(21, 0), endOfDay}, &Frame{At(0, 0), At(1, 0)}),
		models.FuturesDayOvernightLong: build(futuresDay, &Frame{At(21, 0), endOfDay}, &Frame{At(0, 0), At(2, 30)}),
	}
}
