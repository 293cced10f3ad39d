package step

import (
	"strconv"
	"strings"

	calcdomain "github.com/careops/valuemed/internal/calculation/domain"
	deptdomain "github.com/careops/valuemed/internal/department/domain"
)

const dateLayout = "2006-01-02"

// expandContent substitutes the task and department placeholders a step's
// script may reference. Unknown placeholders pass through untouched.
func expandContent(content string, task *calcdomain.CalculationTask, period calcdomain.Period, dept *deptdomain.Department) string {
	replacer := strings.NewReplacer(
		"{task_id}", task.ID,
		"{period}", period.String(),
		"{year}", strconv.Itoa(period.Year),
		"{month}", strconv.Itoa(int(period.Month)),
		"{start_date}", period.StartDate().Format(dateLayout),
		"{end_date}", period.EndDate().Format(dateLayout),
		"{hospital_id}", strconv.FormatInt(int64(task.HospitalID), 10),
		"{version_id}", strconv.FormatInt(int64(task.VersionID), 10),
		"{department_id}", strconv.FormatInt(int64(dept.ID), 10),
		"{department_code}", dept.Code,
		"{department_name}", dept.Name,
		"{accounting_unit_code}", dept.AccountingUnitCode,
		"{accounting_unit_name}", dept.AccountingUnitName,
	)
	return replacer.Replace(content)
}

// splitStatements breaks a script on semicolons and drops statements that
// are empty or contain only line comments.
func splitStatements(script string) []string {
	chunks := strings.Split(script, ";")
	statements := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if stmt := strings.TrimSpace(chunk); stmt != "" && !commentOnly(stmt) {
			statements = append(statements, stmt)
		}
	}
	return statements
}

func commentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return false
	}
	return true
}
