package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/bounce/dispatch-gin/internal/config"
	"github.com/bounce/dispatch-gin/internal/database"
	"github.com/bounce/dispatch-gin/internal/model"
	"github.com/bounce/dispatch-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine 创建基于内存数据库的引擎
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   ":memory:",
	})
	require.NoError(t, err)

	// 内存 SQLite 的每个连接是独立数据库,收紧到单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return NewEngine(repository.NewTaskRepository(db), true, nil)
}

func createTask(t *testing.T, engine *Engine, id string) *model.TaskModel {
	t.Helper()
	res := engine.Create(context.Background(), &model.TaskModel{
		ID:            id,
		OrderID:       "order-" + id,
		PaymentAmount: 80,
		Address:       "9 Elm Ave",
		Description:   "mount a wall bracket",
	})
	require.True(t, res.Success)
	return res.Task
}

// TestEngineCanTransition 测试状态图
func TestEngineCanTransition(t *testing.T) {
	assert.True(t, CanTransition(model.TaskStatusPending, model.TaskStatusAssigned))
	assert.True(t, CanTransition(model.TaskStatusPending, model.TaskStatusCancelled))
	assert.True(t, CanTransition(model.TaskStatusAssigned, model.TaskStatusInProgress))
	assert.True(t, CanTransition(model.TaskStatusAssigned, model.TaskStatusCancelled))
	assert.True(t, CanTransition(model.TaskStatusInProgress, model.TaskStatusCompleted))
	assert.True(t, CanTransition(model.TaskStatusInProgress, model.TaskStatusCancelled))

	assert.False(t, CanTransition(model.TaskStatusPending, model.TaskStatusInProgress))
	assert.False(t, CanTransition(model.TaskStatusPending, model.TaskStatusCompleted))
	assert.False(t, CanTransition(model.TaskStatusAssigned, model.TaskStatusCompleted))
	assert.False(t, CanTransition(model.TaskStatusCompleted, model.TaskStatusInProgress))
	assert.False(t, CanTransition(model.TaskStatusCancelled, model.TaskStatusAssigned))
}

// TestEngineCreate 测试任务创建
func TestEngineCreate(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	res := engine.Create(ctx, &model.TaskModel{
		OrderID:       "order-001",
		Description:   "fix leaking faucet",
		PaymentAmount: 60,
	})
	require.True(t, res.Success)
	assert.NotEmpty(t, res.Task.ID)
	assert.Equal(t, model.TaskStatusPending, res.Task.Status)
	assert.Empty(t, res.Task.AssignedContractorID)

	// 创建时强制 pending,忽略来料中的持有者
	res = engine.Create(ctx, &model.TaskModel{
		ID:                   "task-forced",
		Status:               model.TaskStatusAssigned,
		AssignedContractorID: "contractor-x",
	})
	require.True(t, res.Success)
	assert.Equal(t, model.TaskStatusPending, res.Task.Status)
	assert.Empty(t, res.Task.AssignedContractorID)
}

// TestEngineClaim 测试任务认领
func TestEngineClaim(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	createTask(t, engine, "task-001")

	res := engine.Claim(ctx, "task-001", "contractor-a")
	require.True(t, res.Success)
	assert.Equal(t, model.TaskStatusAssigned, res.Task.Status)
	assert.Equal(t, "contractor-a", res.Task.AssignedContractorID)
	assert.NotNil(t, res.Task.AssignedAt)

	// 已被持有 → conflict
	res = engine.Claim(ctx, "task-001", "contractor-b")
	require.False(t, res.Success)
	assert.Equal(t, ReasonConflict, res.Reason)

	// 不存在 → not_found
	res = engine.Claim(ctx, "missing", "contractor-a")
	require.False(t, res.Success)
	assert.Equal(t, ReasonNotFound, res.Reason)

	// 非法 ID → validation
	res = engine.Claim(ctx, "bad id!", "contractor-a")
	require.False(t, res.Success)
	assert.Equal(t, ReasonValidation, res.Reason)
}

// TestEngineClaimConcurrent 测试并发认领恰好一个赢家
func TestEngineClaimConcurrent(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	createTask(t, engine, "task-001")

	contractors := []string{"c-1", "c-2", "c-3", "c-4", "c-5", "c-6", "c-7", "c-8"}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var won, conflicts int

	for _, id := range contractors {
		wg.Add(1)
		go func(contractorID string) {
			defer wg.Done()
			res := engine.Claim(ctx, "task-001", contractorID)
			mu.Lock()
			defer mu.Unlock()
			if res.Success {
				won++
			} else if res.Reason == ReasonConflict {
				conflicts++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, len(contractors)-1, conflicts)
}

// TestEngineLifecycle 测试完整生命周期 claim → start → complete
func TestEngineLifecycle(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	createTask(t, engine, "task-001")

	res := engine.Claim(ctx, "task-001", "contractor-a")
	require.True(t, res.Success)

	res = engine.Start(ctx, "task-001", "contractor-a")
	require.True(t, res.Success)
	assert.Equal(t, model.TaskStatusInProgress, res.Task.Status)
	assert.NotNil(t, res.Task.StartedAt)

	res = engine.Complete(ctx, "task-001", "contractor-a", CompletionData{
		Notes:     "done",
		PhotoURLs: []string{"https://cdn.example.com/p1.jpg", "https://cdn.example.com/p2.jpg"},
	})
	require.True(t, res.Success)
	assert.Equal(t, model.TaskStatusCompleted, res.Task.Status)
	assert.Equal(t, "done", res.Task.CompletionNotes)
	assert.Len(t, res.Task.PhotoURLs(), 2)
	assert.NotNil(t, res.Task.CompletedAt)
	// 完成后持有者引用保留
	assert.Equal(t, "contractor-a", res.Task.AssignedContractorID)
}

// TestEngineUpdateStatusAuthorization 测试越权与非法迁移的区分
func TestEngineUpdateStatusAuthorization(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	createTask(t, engine, "task-001")

	res := engine.Claim(ctx, "task-001", "contractor-a")
	require.True(t, res.Success)

	// 非持有者 → unauthorized,先于迁移合法性检查
	res = engine.Start(ctx, "task-001", "contractor-b")
	require.False(t, res.Success)
	assert.Equal(t, ReasonUnauthorized, res.Reason)

	// 持有者但迁移非法 → invalid_transition
	res = engine.Start(ctx, "task-001", "contractor-a")
	require.True(t, res.Success)
	res = engine.Start(ctx, "task-001", "contractor-a")
	require.False(t, res.Success)
	assert.Equal(t, ReasonInvalidTransition, res.Reason)

	// completed 必须走 Complete
	res = engine.UpdateStatus(ctx, "task-001", "contractor-a", model.TaskStatusCompleted)
	require.False(t, res.Success)
	assert.Equal(t, ReasonValidation, res.Reason)
}

// TestEngineUpdateStatusRejectsCancellation 测试持有者不能通过状态迁移取消任务
// 取消只有 Cancel 一条路径,它清空持有者并按配置通知
func TestEngineUpdateStatusRejectsCancellation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	createTask(t, engine, "task-001")

	require.True(t, engine.Claim(ctx, "task-001", "contractor-a").Success)

	res := engine.UpdateStatus(ctx, "task-001", "contractor-a", model.TaskStatusCancelled)
	require.False(t, res.Success)
	assert.Equal(t, ReasonValidation, res.Reason)

	// 任务未被改动: 状态与持有者保持原样
	got := engine.Get(ctx, "task-001")
	require.True(t, got.Success)
	assert.Equal(t, model.TaskStatusAssigned, got.Task.Status)
	assert.Equal(t, "contractor-a", got.Task.AssignedContractorID)

	// in_progress 状态下同样被拒绝
	require.True(t, engine.Start(ctx, "task-001", "contractor-a").Success)
	res = engine.UpdateStatus(ctx, "task-001", "contractor-a", model.TaskStatusCancelled)
	require.False(t, res.Success)
	assert.Equal(t, ReasonValidation, res.Reason)

	got = engine.Get(ctx, "task-001")
	require.True(t, got.Success)
	assert.Equal(t, model.TaskStatusInProgress, got.Task.Status)
	assert.Equal(t, "contractor-a", got.Task.AssignedContractorID)
}

// TestEngineCompleteRequiresInProgress 测试完成的前置状态
func TestEngineCompleteRequiresInProgress(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	createTask(t, engine, "task-001")

	res := engine.Claim(ctx, "task-001", "contractor-a")
	require.True(t, res.Success)

	// assigned 状态下不可完成
	res = engine.Complete(ctx, "task-001", "contractor-a", CompletionData{Notes: "done"})
	require.False(t, res.Success)
	assert.Equal(t, ReasonInvalidTransition, res.Reason)

	// 非持有者不可完成
	res = engine.Start(ctx, "task-001", "contractor-a")
	require.True(t, res.Success)
	res = engine.Complete(ctx, "task-001", "contractor-b", CompletionData{Notes: "done"})
	require.False(t, res.Success)
	assert.Equal(t, ReasonUnauthorized, res.Reason)
}

// TestEngineCompleteValidation 测试完成数据校验
func TestEngineCompleteValidation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	createTask(t, engine, "task-001")
	require.True(t, engine.Claim(ctx, "task-001", "contractor-a").Success)
	require.True(t, engine.Start(ctx, "task-001", "contractor-a").Success)

	// 照片超限
	photos := []string{
		"https://cdn.example.com/1.jpg",
		"https://cdn.example.com/2.jpg",
		"https://cdn.example.com/3.jpg",
		"https://cdn.example.com/4.jpg",
		"https://cdn.example.com/5.jpg",
		"https://cdn.example.com/6.jpg",
	}
	res := engine.Complete(ctx, "task-001", "contractor-a", CompletionData{PhotoURLs: photos})
	require.False(t, res.Success)
	assert.Equal(t, ReasonValidation, res.Reason)

	// 非 http(s) 链接
	res = engine.Complete(ctx, "task-001", "contractor-a", CompletionData{
		PhotoURLs: []string{"ftp://cdn.example.com/1.jpg"},
	})
	require.False(t, res.Success)
	assert.Equal(t, ReasonValidation, res.Reason)

	// 备注超长
	long := make([]byte, model.MaxCompletionNotesLen+1)
	for i := range long {
		long[i] = 'a'
	}
	res = engine.Complete(ctx, "task-001", "contractor-a", CompletionData{Notes: string(long)})
	require.False(t, res.Success)
	assert.Equal(t, ReasonValidation, res.Reason)
}

// TestEngineCancel 测试取消
func TestEngineCancel(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	// pending 可取消
	createTask(t, engine, "task-001")
	res := engine.Cancel(ctx, "task-001", "customer no-show")
	require.True(t, res.Success)
	assert.Equal(t, model.TaskStatusCancelled, res.Task.Status)

	// assigned 可取消,持有者引用清空
	createTask(t, engine, "task-002")
	require.True(t, engine.Claim(ctx, "task-002", "contractor-a").Success)
	res = engine.Cancel(ctx, "task-002", "order withdrawn")
	require.True(t, res.Success)
	assert.Equal(t, model.TaskStatusCancelled, res.Task.Status)
	assert.Empty(t, res.Task.AssignedContractorID)

	// 终态不可取消
	res = engine.Cancel(ctx, "task-001", "again")
	require.False(t, res.Success)
	assert.Equal(t, ReasonInvalidTransition, res.Reason)

	res = engine.Cancel(ctx, "missing", "whatever")
	require.False(t, res.Success)
	assert.Equal(t, ReasonNotFound, res.Reason)
}

// TestEngineListAvailable 测试待认领列表
func TestEngineListAvailable(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for _, id := range []string{"task-001", "task-002", "task-003"} {
		createTask(t, engine, id)
	}
	require.True(t, engine.Claim(ctx, "task-002", "contractor-a").Success)

	tasks, total, err := engine.ListAvailable(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, tasks, 2)

	mine, err := engine.ListByContractor(ctx, "contractor-a", nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "task-002", mine[0].ID)
}
