package download

import (
	"fmt"
	"strings"
)

var sqlFlattener = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

// SimplifySQL replaces every newline, carriage return and tab with a single
// space. Each character is replaced on its own: "\r\n" becomes two spaces and
// no other whitespace is collapsed or trimmed.
func SimplifySQL(sql string) string {
	return sqlFlattener.Replace(sql)
}

// PlanFileName is the name a downloaded plan is saved under.
func PlanFileName(schemaID, queryID int) string {
	return fmt.Sprintf("PDQ_plan_schema%d_query%d.xml", schemaID, queryID)
}

// RunFileName is the name downloaded run results are saved under.
const RunFileName = "results.csv"
