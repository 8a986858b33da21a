package clock

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// Clock entrega el instante actual. Se inyecta en servicios para que los tests
// puedan fijar "ahora".
type Clock interface {
	Now() time.Time
}

// Func adapta una función al interface Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// System usa time.Now.
var System Clock = Func(time.Now)

// Fixed devuelve siempre el mismo instante.
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

var ErrInvalidClockTime = errors.New("invalid clock time, expected HH:MM")

var clockTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ClockTime es una hora del día en formato 24h.
type ClockTime struct {
	Hour   int
	Minute int
}

// Minutes devuelve los minutos desde medianoche.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return pad2(c.Hour) + ":" + pad2(c.Minute)
}

// ParseClockTime parsea "HH:MM" (24h, con ceros a la izquierda).
func ParseClockTime(s string) (ClockTime, error) {
	m := clockTimeRe.FindStringSubmatch(s)
	if m == nil {
		return ClockTime{}, ErrInvalidClockTime
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return ClockTime{Hour: h, Minute: mm}, nil
}

// IsClockTime reporta si s tiene formato HH:MM válido.
func IsClockTime(s string) bool {
	return clockTimeRe.MatchString(s)
}

func AddMinutes(t time.Time, minutes int) time.Time {
	return t.Add(time.Duration(minutes) * time.Minute)
}

// StartOfDay devuelve la medianoche del día calendario de t en loc.
// Si loc es nil se usa la zona de t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays suma días calendario (respeta cambios de horario de la zona).
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// At combina un día (cualquier instante del mismo) con una hora del día.
func At(day time.Time, ct ClockTime) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, ct.Hour, ct.Minute, 0, 0, day.Location())
}

// MinutesBetween devuelve b - a en minutos enteros (truncado hacia cero, con signo).
func MinutesBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Minute)
}

// Earliest devuelve el menor de los dos; nil se ignora.
func Earliest(current *time.Time, candidate time.Time) *time.Time {
	if current == nil || candidate.Before(*current) {
		c := candidate
		return &c
	}
	return current
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
