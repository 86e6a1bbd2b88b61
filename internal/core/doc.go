// Package core provides the spreadsheet health checks.
//
// This package holds all domain logic independent of any transport. It is
// used by the request handler, the HTTP server and the sheetcheck CLI without
// modification.
//
// # Architecture
//
// The package is organized around a short pipeline:
//
//   - Loader: [LoadTable] turns xlsx or csv bytes into a [Table].
//   - Validator: [Validator] runs the health checks over a Table.
//   - Result: [ValidationResult] is the single response shape for every outcome.
//   - Limiter: [Limiter] bounds how many workbooks are in memory at once.
//
// # Health Checks
//
// A [Validator] is built from [Rules] and always runs three checks, in order:
//
//	v := core.NewValidator(core.Rules{
//	    RequiredHeaders: []string{"Funder Hierarchy", "Responsible Unit Name", "Project Definition", "PD Description"},
//	    UniqueColumn:    "Project Definition",
//	})
//	result := v.Validate(table)
//
//  1. The header row must equal RequiredHeaders exactly, in order.
//  2. No value may repeat in UniqueColumn. Repeated blanks count.
//  3. No cell may be empty.
//
// Every failing check adds one message to [ValidationResult.Errors]. Checks
// never stop early.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - HDR001, UNQ001-UNQ002, EMP001: Rule violations
//   - FILE001-FILE007: File errors (size, format, sheet, header)
//   - REQ001-REQ003: Request errors (encoding, format, body)
//   - SRC001-SRC002: Object storage errors
//   - BUSY001, UPL004-UPL005, RATE001: Service errors
package core
