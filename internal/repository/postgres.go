// Package repository implements every internal/domain repository interface
// against Postgres with database/sql + github.com/lib/pq, following the
// teacher's checkXExists/$N-placeholder idiom (no ORM). Squirrel builds the
// account candidate scan (owner scope plus offset/limit paging; no filter
// predicates are pushed down); everything else is plain SQL.
package repository

import (
	sq "github.com/Masterminds/squirrel"
)

// psql is the squirrel statement builder configured for Postgres's
// dollar-placeholder style, shared by every repository that pushes part of
// its query down dynamically.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
