package version

// Version is the current release of the everkeep server & CLI.
const Version = "0.1.0"
