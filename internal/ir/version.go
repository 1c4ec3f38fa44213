package ir

// Version constants stamped on journal entries and checkpoints.
const (
	// FormatVersion is the canonical snapshot format version.
	FormatVersion = "1"

	// CoreVersion is the walletcore runtime version.
	CoreVersion = "0.1.0"
)
