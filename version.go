// Package pkgguard runs a package-manager binary behind input validation,
// a flag whitelist, and a bounded process runner, and parses its tabular
// output into typed records.
package pkgguard

// Version is the pkgguard release version.
const Version = "0.3.0"
