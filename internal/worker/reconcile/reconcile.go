// Package reconcile はストレージの整合性を回復するバックグラウンドジョブを提供する。
// 中断されたコミットのインテントを再適用し、users から students / companies のミラーを再生成する。
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/capacita/internal/model"
	"github.com/hitoshi/capacita/internal/repository"
	"github.com/hitoshi/capacita/internal/storage"
)

// MetricsRecorder は修復件数の記録インターフェース。
type MetricsRecorder interface {
	RecordReconcileRepairs(n int)
}

// Report は1回の実行結果。
type Report struct {
	IntentsReplayed   int
	StudentsRepaired  int
	CompaniesRepaired int
}

// Repairs はミラーの修復件数の合計を返す。
func (r Report) Repairs() int {
	return r.StudentsRepaired + r.CompaniesRepaired
}

// Job はインテントの再適用とミラー修復を行うジョブ。
type Job struct {
	store   *storage.Store
	metrics MetricsRecorder
	logger  *slog.Logger
}

// NewJob は新しいJobを生成する。metrics が nil の場合は記録しない。
func NewJob(store *storage.Store, metrics MetricsRecorder, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// Start は interval ごとに Run を実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("整合性チェックジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("整合性チェックジョブを停止しました")
			return
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.Error("整合性チェックの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run はインテントを再適用してから、欠けている・古いミラーレコードを users から再生成する。
// ユーザーに対応しないミラーレコード（移行前のデータ）は変更しない。
// 冪等: 修復対象がない場合は何も書き込まない。
func (j *Job) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	replayed, err := j.store.Recover(ctx)
	if err != nil {
		return report, fmt.Errorf("インテントの再適用に失敗: %w", err)
	}
	report.IntentsReplayed = replayed

	names := []string{repository.UsersName, repository.StudentsName, repository.CompaniesName}
	err = j.store.Update(ctx, names, func(tx *storage.Tx) error {
		users, err := repository.Users.Load(tx)
		if err != nil {
			return err
		}
		students, err := repository.Students.Load(tx)
		if err != nil {
			return err
		}
		companies, err := repository.Companies.Load(tx)
		if err != nil {
			return err
		}

		for _, u := range users {
			switch u.TipoUsuario {
			case model.KindStudent:
				want := model.StudentFromUser(u)
				i := repository.IndexStudent(students, u.ID)
				if i >= 0 && sameJSON(students[i], want) {
					continue
				}
				students = repository.UpsertStudent(students, want)
				report.StudentsRepaired++
			case model.KindCompany:
				want := model.CompanyFromUser(u)
				i := repository.IndexCompany(companies, u.ID)
				if i >= 0 && sameJSON(companies[i], want) {
					continue
				}
				companies = repository.UpsertCompany(companies, want)
				report.CompaniesRepaired++
			}
		}

		if report.StudentsRepaired > 0 {
			if err := repository.Students.Save(tx, students); err != nil {
				return err
			}
		}
		if report.CompaniesRepaired > 0 {
			if err := repository.Companies.Save(tx, companies); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("ミラーの修復に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordReconcileRepairs(report.IntentsReplayed + report.Repairs())
	}

	level := slog.LevelInfo
	if report.IntentsReplayed > 0 || report.Repairs() > 0 {
		level = slog.LevelWarn
	}
	j.logger.LogAttrs(ctx, level, "整合性チェックが完了しました",
		slog.Int("intents_replayed", report.IntentsReplayed),
		slog.Int("students_repaired", report.StudentsRepaired),
		slog.Int("companies_repaired", report.CompaniesRepaired),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return report, nil
}

// sameJSON は保存形式で比較する。時刻のロケーションなど表現上の差は無視される。
func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
