package sas7bdat

import (
	"math"
	"strings"
	"time"

	"github.com/JonMunkholm/sasbridge/internal/dataset"
)

// sasEpoch is the zero point of SAS dates and datetimes.
var sasEpoch = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

var dateFormats = toSet(
	"DATE", "DAY", "DDMMYY", "DOWNAME", "JULDAY", "JULIAN", "MMDDYY", "MMYY",
	"MMYYC", "MMYYD", "MMYYP", "MMYYS", "MMYYN", "MONNAME", "MONTH", "MONYY",
	"QTR", "QTRR", "NENGO", "WEEKDATE", "WEEKDATX", "WEEKDAY", "WEEKV",
	"WORDDATE", "WORDDATX", "YEAR", "YYMM", "YYMMC", "YYMMD", "YYMMP", "YYMMS",
	"YYMMN", "YYMON", "YYMMDD", "YYQ", "YYQC", "YYQD", "YYQP", "YYQS", "YYQN",
	"YYQR", "YYQRC", "YYQRD", "YYQRP", "YYQRS", "YYQRN", "YYMMDDP", "YYMMDDC",
	"E8601DA", "YYMMDDN", "MMDDYYC", "MMDDYYS", "MMDDYYD", "YYMMDDS",
	"B8601DA", "DDMMYYN", "YYMMDDD", "DDMMYYB", "DDMMYYP", "MMDDYYP",
	"YYMMDDB", "MMDDYYN", "DDMMYYC", "DDMMYYD", "DDMMYYS", "MINGUO",
)

var dateTimeFormats = toSet(
	"DATETIME", "DTWKDATX", "B8601DN", "B8601DT", "B8601DX", "B8601DZ",
	"B8601LX", "E8601DN", "E8601DT", "E8601DX", "E8601DZ", "E8601LX",
	"DATEAMPM", "DTDATE", "DTMONYY", "DTYEAR", "TOD", "MDYAMPM",
)

var timeFormats = toSet(
	"TIME", "HHMM", "HOUR", "MMSS", "TIMEAMPM",
	"E8601TM", "B8601TM", "E8601TZ", "B8601TZ", "E8601LZ", "B8601LZ",
)

func toSet(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// baseFormat strips the width and decimals from a format name: "DATE9." and
// "date" both become "DATE".
func baseFormat(format string) string {
	f := strings.ToUpper(strings.TrimSpace(format))
	return strings.TrimRight(f, "0123456789.")
}

// numericType picks the logical type of a numeric column from its format.
func numericType(format string) dataset.ColumnType {
	f := baseFormat(format)
	if _, ok := dateFormats[f]; ok {
		return dataset.Date
	}
	if _, ok := dateTimeFormats[f]; ok {
		return dataset.DateTime
	}
	if _, ok := timeFormats[f]; ok {
		return dataset.Time
	}
	return dataset.Numeric
}

// Temporal values beyond these magnitudes overflow time.Time microseconds or
// time.Duration and are treated as missing.
const (
	maxDateDays        = 1e7
	maxDateTimeSeconds = 1e12
	maxTimeSeconds     = 9e9
)

// convertNumeric maps a raw SAS double to the cell value for the column type.
// NaN (every SAS missing value) and infinities become nil.
func convertNumeric(v float64, ct dataset.ColumnType) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	switch ct {
	case dataset.Date:
		if math.Abs(v) > maxDateDays {
			return nil
		}
		return sasEpoch.AddDate(0, 0, int(math.Floor(v)))
	case dataset.DateTime:
		if math.Abs(v) > maxDateTimeSeconds {
			return nil
		}
		us := int64(math.Round(v * 1e6))
		return time.UnixMicro(sasEpoch.UnixMicro() + us).UTC()
	case dataset.Time:
		if math.Abs(v) > maxTimeSeconds {
			return nil
		}
		return time.Duration(math.Round(v*1e6)) * time.Microsecond
	}
	return v
}
