// Package core provides the business logic for bulk lead import.
//
// This package has no UI or network dependencies. The CLI drives it and
// supplies a [Submitter] that talks to the backend; tests supply a fake.
//
// # Flow
//
//  1. [LoadFile] or [Job.Load] turns a file into a [Table]. Delimited text
//     is cleaned (BOM, invalid UTF-8) and split by [Parser]; .xlsx files
//     are read from their first sheet.
//  2. [Suggest] seeds a [Mapping] per column from its header text. A saved
//     [Profile] can be applied on top, and single columns overridden with
//     [Job.SetMapping].
//  3. [Job.ToPreview] requires at least one mapped column; [Job.Preview]
//     shows the first mapped rows.
//  4. [Job.Run] builds a [Record] per row and submits them one at a time,
//     in file order. Rows without a name and an email are skipped and
//     counted as failures. Failures never stop the batch; the most recent
//     ones are kept in a bounded [ErrorLog].
//
// # Row numbers
//
// Every retained row keeps its 1-based line in the source file, so error
// entries point at the line a user sees in an editor even when blank lines
// were dropped.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - AUTH001-AUTH002: credential and permission failures
//   - NET001-NET004: network failures
//   - VAL001-VAL002: missing identity, rejected records
//   - FILE001-FILE004: size, emptiness, type, existence
//   - IMP001-IMP003: mapping, cancellation, phase errors
package core
