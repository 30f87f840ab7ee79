package xlutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type DateSerialSuite struct {
	suite.Suite
}

func TestDateSerialSuite(t *testing.T) {
	suite.Run(t, new(DateSerialSuite))
}

func (s *DateSerialSuite) TestKnownAnchors() {
	cases := []struct {
		date   time.Time
		serial float64
	}{
		{time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(1900, 2, 28, 0, 0, 0, 0, time.UTC), 59},
		{time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC), 61},
	}
	for _, tc := range cases {
		got := TimestampMsToExcelSerial(tc.date.UnixMilli())
		s.InDelta(tc.serial, got, 0.0001, tc.date.String())
	}
}

func (s *DateSerialSuite) TestRoundTripWithinOneDay() {
	inputs := []int64{
		0,
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC).UnixMilli(),
		time.Date(1901, 3, 2, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}
	for _, ms := range inputs {
		serial := TimestampMsToExcelSerial(ms)
		back, ok := ExcelSerialToTimestampMs(serial)
		s.Require().True(ok)
		diff := back - ms
		if diff < 0 {
			diff = -diff
		}
		s.Less(diff, int64(24*60*60*1000), "ms=%d serial=%f", ms, serial)
	}
}

func (s *DateSerialSuite) TestNegativeSerialRejected() {
	_, ok := ExcelSerialToTimestampMs(-1)
	s.False(ok)
}

func (s *DateSerialSuite) TestFictitiousLeapDayDoesNotPanic() {
	ms, ok := ExcelSerialToTimestampMs(60)
	s.True(ok)
	got := time.UnixMilli(ms).UTC()
	s.Equal(1900, got.Year())
	s.Equal(time.February, got.Month())
}
