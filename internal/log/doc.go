// Package log wraps slog so crawl logs can be shared without leaking the
// credentials a crawl was configured with.
//
// Spider logs every page and image URL it touches, and users pass cookies and
// auth headers through flags and .spider files. The SecureHandler masks:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (bearer tokens, JWTs, keys)
//   - URL userinfo passwords and query parameters such as token or signature,
//     including URLs embedded in error messages
//   - Session identifiers and authentication tokens
//
// Masking applies at every level, including --verbose debug output.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Warn("failed to fetch page",
//	    "url", "http://user:pw@example.com/?token=abc", // password and token are masked
//	    "cookie", "session=abc123",                      // masked entirely
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
