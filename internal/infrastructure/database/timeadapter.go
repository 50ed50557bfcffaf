package database

import "time"

// The schema stores every instant in naive TIMESTAMP columns holding UTC
// wall clock values. pgx encodes a timestamp from the value's own wall
// clock, so values must be converted to UTC before they hit the driver, and
// values read back are re-stamped as UTC regardless of what location the
// driver attached.

// toDB normalizes an instant for a naive timestamp column.
func toDB(t time.Time) time.Time {
	return t.UTC()
}

// toDBPtr is toDB for nullable columns.
func toDBPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// fromDB stamps UTC onto a naive timestamp read back from the database.
func fromDB(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// fromDBPtr is fromDB for nullable columns.
func fromDBPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := fromDB(*t)
	return &u
}
