package progress

// Key is the composite (user, video) grouping key for the pending queue and
// the committed table. It is a struct used directly as a map key, so two
// distinct pairs can never collide, unlike separator-joined string keys
// which break as soon as an identifier contains the separator.
type Key struct {
	UserID  string
	VideoID string
}

// MergeResult reports the outcome of one merge pass.
type MergeResult struct {
	// ScannedKeys is the number of keys that had at least one pending sample.
	ScannedKeys int `json:"scanned_keys"`
	// RaisedKeys is the number of keys whose committed value was created or
	// raised. Always <= ScannedKeys.
	RaisedKeys int `json:"raised_keys"`
}
