// Package log provides a slog handler that masks credentials before they
// reach log output.
//
// webmirror logs request URLs, proxy addresses and per-site headers at debug
// level. Site configuration commonly carries cookies and Authorization
// headers, and proxy URLs may embed a password, so every record passes
// through SecureHandler:
//
//   - attributes whose key names a credential (cookie, authorization, token, ...) are masked
//   - string values that look like credentials (bearer/basic tokens, JWTs) are masked
//   - URL values keep their shape but lose the userinfo password
//   - map[string]string values (header sets) have their sensitive entries masked
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, log.Options{Verbose: true})
//	slog.SetDefault(logger)
package log
