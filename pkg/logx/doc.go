// Package logx configures releasewatch's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional Telegram ops sink (min-level + rate limiting), used to surface
//     page-structure breaks and persistence failures to a human
package logx
