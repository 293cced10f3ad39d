package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/calculation/domain"
	"github.com/careops/valuemed/pkg/db/option"
	"github.com/careops/valuemed/pkg/db/pagination"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTask(ctx context.Context, db *gorm.DB, task *domain.CalculationTask) error {
	return db.WithContext(ctx).Create(task).Error
}

func (r *repo) FindTask(ctx context.Context, db *gorm.DB, taskID string) (*domain.CalculationTask, error) {
	var task domain.CalculationTask
	err := db.WithContext(ctx).
		Where("id = ?", taskID).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *repo) FindTasks(ctx context.Context, db *gorm.DB, hospitalID snowflake.ID, period string, page pagination.Pagination) ([]*domain.CalculationTask, *pagination.PageInfo, error) {
	var tasks []*domain.CalculationTask
	stmt := db.WithContext(ctx).
		Model(&domain.CalculationTask{}).
		Where("hospital_id = ?", hospitalID)
	if strings.TrimSpace(period) != "" {
		stmt = option.ApplyOperator(option.Condition{
			Field:    "period",
			Operator: option.EQ,
			Value:    strings.TrimSpace(period),
		}).Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.Order("created_at desc, id desc").Find(&tasks).Error
	if err != nil {
		return nil, nil, err
	}

	tasks, info := pagination.Trim(tasks, page.PageSize, func(task *domain.CalculationTask) pagination.Cursor {
		return pagination.NewCursor(task.ID, task.CreatedAt)
	})
	return tasks, info, nil
}

func (r *repo) MarkRunning(ctx context.Context, db *gorm.DB, taskID string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE calculation_tasks
		 SET status = ?, started_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusRunning, now, now, taskID, domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkTerminal(ctx context.Context, db *gorm.DB, taskID, status, errorMessage string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE calculation_tasks
		 SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, errorMessage, now, now, taskID, domain.StatusRunning,
	).Error
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, taskID string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE calculation_tasks
		 SET status = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		domain.StatusCancelled, now, now, taskID, domain.StatusPending, domain.StatusRunning,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) UpdateProgress(ctx context.Context, db *gorm.DB, taskID string, progress int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE calculation_tasks SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, now, taskID,
	).Error
}

func (r *repo) FindLeafResults(ctx context.Context, db *gorm.DB, taskID string, departmentID snowflake.ID) ([]*domain.CalculationResult, error) {
	var rows []*domain.CalculationResult
	err := db.WithContext(ctx).
		Model(&domain.CalculationResult{}).
		Where("task_id = ? AND department_id = ? AND node_type = ?", taskID, departmentID, "dimension").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindResults(ctx context.Context, db *gorm.DB, taskID string, departmentID *snowflake.ID) ([]*domain.CalculationResult, error) {
	var rows []*domain.CalculationResult
	stmt := db.WithContext(ctx).
		Model(&domain.CalculationResult{}).
		Where("task_id = ?", taskID)
	if departmentID != nil {
		stmt = stmt.Where("department_id = ?", *departmentID)
	}
	err := stmt.Order("department_id asc, node_id asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceDepartmentResults swaps the full row set for one task+department.
// Delete-then-insert keeps recomputation idempotent.
func (r *repo) ReplaceDepartmentResults(ctx context.Context, db *gorm.DB, taskID string, departmentID snowflake.ID, rows []*domain.CalculationResult) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`DELETE FROM calculation_results WHERE task_id = ? AND department_id = ?`,
			taskID, departmentID,
		).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

func (r *repo) UpsertSummary(ctx context.Context, db *gorm.DB, summary *domain.CalculationSummary) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO calculation_summaries
		   (id, task_id, department_id, clinician_value, clinician_ratio, nursing_value, nursing_ratio,
		    technical_value, technical_ratio, total_value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (task_id, department_id)
		 DO UPDATE SET clinician_value = EXCLUDED.clinician_value,
		               clinician_ratio = EXCLUDED.clinician_ratio,
		               nursing_value = EXCLUDED.nursing_value,
		               nursing_ratio = EXCLUDED.nursing_ratio,
		               technical_value = EXCLUDED.technical_value,
		               technical_ratio = EXCLUDED.technical_ratio,
		               total_value = EXCLUDED.total_value,
		               updated_at = EXCLUDED.updated_at`,
		summary.ID,
		summary.TaskID,
		summary.DepartmentID,
		summary.ClinicianValue,
		summary.ClinicianRatio,
		summary.NursingValue,
		summary.NursingRatio,
		summary.TechnicalValue,
		summary.TechnicalRatio,
		summary.TotalValue,
		summary.CreatedAt,
		summary.UpdatedAt,
	).Error
}

func (r *repo) FindSummaries(ctx context.Context, db *gorm.DB, taskID string) ([]*domain.CalculationSummary, error) {
	var summaries []*domain.CalculationSummary
	err := db.WithContext(ctx).
		Model(&domain.CalculationSummary{}).
		Where("task_id = ?", taskID).
		Order("department_id asc").
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *repo) InsertStepLog(ctx context.Context, db *gorm.DB, entry *domain.CalculationStepLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindStepLogs(ctx context.Context, db *gorm.DB, taskID string) ([]*domain.CalculationStepLog, error) {
	var logs []*domain.CalculationStepLog
	err := db.WithContext(ctx).
		Model(&domain.CalculationStepLog{}).
		Where("task_id = ?", taskID).
		Order("step_order asc, created_at asc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// NodePath walks the persisted parent chain for one task+department and
// joins node names root first.
func (r *repo) NodePath(ctx context.Context, db *gorm.DB, taskID string, departmentID, nodeID snowflake.ID, separator string) (string, error) {
	rows, err := r.FindResults(ctx, db, taskID, &departmentID)
	if err != nil {
		return "", err
	}

	byNode := make(map[snowflake.ID]*domain.CalculationResult, len(rows))
	for _, row := range rows {
		byNode[row.NodeID] = row
	}

	current, ok := byNode[nodeID]
	if !ok {
		return "", domain.ErrResultsNotFound
	}

	var names []string
	for current != nil {
		names = append(names, current.NodeName)
		if current.ParentID == nil {
			break
		}
		parent, ok := byNode[*current.ParentID]
		if !ok {
			// Closure invariant broken; stop at the last known ancestor.
			break
		}
		current = parent
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, separator), nil
}

func (r *repo) CompareByUnit(ctx context.Context, db *gorm.DB, currentTaskID, previousTaskID string) ([]*domain.UnitComparisonRow, error) {
	var rows []*domain.UnitComparisonRow
	err := db.WithContext(ctx).Raw(
		`SELECT
		   COALESCE(NULLIF(d.accounting_unit_code, ''), d.code) AS accounting_unit_code,
		   MAX(COALESCE(NULLIF(d.accounting_unit_name, ''), d.name)) AS accounting_unit_name,
		   r.node_id AS node_id,
		   MAX(r.node_name) AS node_name,
		   MAX(r.node_type) AS node_type,
		   SUM(CASE WHEN r.task_id = ? THEN r.value ELSE 0 END) AS current_value,
		   SUM(CASE WHEN r.task_id = ? THEN r.value ELSE 0 END) AS previous_value
		 FROM calculation_results r
		 JOIN departments d ON d.id = r.department_id
		 WHERE r.task_id IN (?, ?)
		 GROUP BY COALESCE(NULLIF(d.accounting_unit_code, ''), d.code), r.node_id
		 ORDER BY accounting_unit_code, node_id`,
		currentTaskID,
		previousTaskID,
		currentTaskID,
		previousTaskID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
