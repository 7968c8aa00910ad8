package types

// Version is the canonical project version.
// The CLI, the sender, and the journal record layout share this version
// per the lockstep versioning policy.
const Version = "0.1.0"
