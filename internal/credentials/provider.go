// Package credentials abstracts credential lookup behind a purpose-scoped
// interface, following the pattern of envVar-keyed provider lookups: the
// core never calls os.Getenv directly, so it stays
// testable and never triggers an interactive prompt.
package credentials

import "os"

// Purpose identifies what a requested credential will be used for. The
// only purpose this module currently looks up is "modules" (git package
// fetch), named as a string rather than an enum so future adapters can
// register new purposes without a core API change.
type Purpose string

// PurposeModules is the credential purpose consulted by the Package
// Downloader (C5) before a git fetch.
const PurposeModules Purpose = "modules"

// TokenProvider returns an opaque bearer credential for a purpose, or ""
// when none is configured. It never errors: a missing credential is not
// a failure in itself, only a later AuthError if the fetch it gates
// actually requires one.
type TokenProvider interface {
	Token(purpose Purpose) string
}

// envPrecedence lists, per purpose, the environment variables consulted in
// order; the first non-empty value wins.
var envPrecedence = map[Purpose][]string{
	PurposeModules: {"APM_MODULES_TOKEN", "GITHUB_TOKEN"},
}

// EnvTokenProvider looks up credentials from the process environment,
// lazily and only when asked — the adapter spec.md §9 requires standing
// between the core and os.Getenv.
type EnvTokenProvider struct{}

// Token implements TokenProvider by consulting envPrecedence for purpose
// and returning the first non-empty variable's value.
func (EnvTokenProvider) Token(purpose Purpose) string {
	for _, name := range envPrecedence[purpose] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// NoopTokenProvider never returns a credential, used where package fetch
// is known to target public repositories only (tests, local scaffolding).
type NoopTokenProvider struct{}

// Token always returns "".
func (NoopTokenProvider) Token(Purpose) string { return "" }
