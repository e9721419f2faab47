// Package migrations holds the ordered product schema files. File
// names sort lexicographically into application order.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
