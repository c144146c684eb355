package catalog

// KeyFunc derives the record key from the identifier in the source row.
type KeyFunc func(sourceID string) string

// Identity uses the source identifier as the key.
func Identity(sourceID string) string {
	return sourceID
}

// Suffix appends s to the source identifier. Suffix(".jpg") reproduces the
// image-file keys of legacy datasets.
func Suffix(s string) KeyFunc {
	return func(sourceID string) string {
		return sourceID + s
	}
}
