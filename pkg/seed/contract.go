// Package seed materializes operational store contents as flat CSV
// snapshots, the sole hand-off artifact to the transformation layer.
// Snapshot columns are an explicit, versioned contract checked at
// extraction time; a mismatch fails fast instead of producing a file the
// transformation layer would silently misinterpret.
package seed

import (
	"github.com/apppulse/apppulse/internal/model"
	"github.com/apppulse/apppulse/pkg/apperrors"
)

// Contract pins a snapshot's name and exact column set. Column order is
// stable across runs: the transformation layer's compiled models resolve
// columns by name and must keep resolving the same ones.
type Contract struct {
	Name    string
	Version int
	Columns []string
}

// AppsContract is the apps snapshot contract. It matches AppColumns
// except that price is numeric: extraction strips the "$" display prefix
// so the transformation layer never parses currency strings.
var AppsContract = Contract{
	Name:    "apps_from_postgres",
	Version: 1,
	Columns: model.AppColumns,
}

// ReviewsContract is the reviews snapshot contract. Store-internal
// document identifiers are already gone by the time rows reach here.
var ReviewsContract = Contract{
	Name:    "reviews_from_redis",
	Version: 1,
	Columns: model.ReviewColumns,
}

// Filename returns the snapshot file name for the contract.
func (c Contract) Filename() string {
	return c.Name + ".csv"
}

// CheckRow validates one rendered row against the contract.
func (c Contract) CheckRow(row []string) error {
	if len(row) != len(c.Columns) {
		return apperrors.Newf(apperrors.CodeSchemaMismatch,
			"snapshot %s v%d: row has %d fields, contract declares %d",
			c.Name, c.Version, len(row), len(c.Columns))
	}
	return nil
}
