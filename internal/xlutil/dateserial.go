package xlutil

import "time"

// Excel's day-0 epoch is 1899-12-31 (serial 1 is 1900-01-01). Lotus 1-2-3
// treated 1900 as a leap year and Excel copied the bug for compatibility:
// serial 60 is the fictitious 1900-02-29, so every true Gregorian date on
// or after 1900-03-01 sits one serial higher than a proleptic calendar
// would put it (1900-02-28 is serial 59, 1900-03-01 is serial 61, serial
// 60 has no real date).
var excelEpoch = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)

// TimestampMsToExcelSerial converts a Unix millisecond timestamp to an
// Excel date serial, preserving the 1900 leap-year bug: every true
// Gregorian day on or after 1900-03-01 is reported one serial higher
// than plain day-counting from the epoch would give.
func TimestampMsToExcelSerial(ms int64) float64 {
	t := time.UnixMilli(ms).UTC()
	days := t.Sub(excelEpoch).Hours() / 24
	if days >= 60 {
		days++
	}
	return days
}

// ExcelSerialToTimestampMs reverses TimestampMsToExcelSerial. Negative
// serials have no representable timestamp and return ok=false. Serial
// 60 — the fictitious 1900-02-29 — is mapped to the same instant as
// serial 59 (1900-02-28); this keeps the function total without
// inventing a calendar date Go cannot represent, and stays within the
// one-day round-trip tolerance the round-trip law requires.
func ExcelSerialToTimestampMs(serial float64) (ms int64, ok bool) {
	if serial < 0 {
		return 0, false
	}
	var days float64
	switch {
	case serial < 60:
		days = serial
	case serial < 61:
		days = 59
	default:
		days = serial - 1
	}
	t := excelEpoch.Add(time.Duration(days * 24 * float64(time.Hour)))
	return t.UnixMilli(), true
}
