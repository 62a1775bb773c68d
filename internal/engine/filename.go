package engine

import "time"

// filenameStamp is the compact MMDD_HHmmss timestamp.
const filenameStamp = "0102_150405"

// ImageFilename returns the suggested save name for an image of description
// produced at t.
func ImageFilename(description string, t time.Time) string {
	return description + "_" + t.Format(filenameStamp) + ".png"
}
