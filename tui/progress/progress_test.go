package progress

import (
	"context"
	"strings"
	"testing"

	"lecturemate/jobs"
	"lecturemate/llm"
	"lecturemate/pubsub"
)

func TestStageLabel(t *testing.T) {
	if got := StageLabel("integration"); got != "統合分析を生成中" {
		t.Fatalf("StageLabel = %q", got)
	}
	if got := StageLabel("custom"); got != "custom" {
		t.Fatalf("StageLabel(custom) = %q", got)
	}
}

func TestModelQuitsWhenJobEnds(t *testing.T) {
	broker := pubsub.NewBroker[jobs.Event]()
	defer broker.Shutdown()
	mgr := jobs.NewManager(broker, 0)
	defer mgr.Shutdown()

	release := make(chan struct{})
	task := mgr.Start(context.Background(), "summary", 100, func(ctx context.Context, progress func(string)) (llm.SummaryResult, error) {
		<-release
		return llm.SummaryResult{Summary: "ok"}, nil
	})

	m := New(context.Background(), task, broker, "physics")
	if !strings.Contains(m.View(), "準備中") {
		t.Fatalf("view = %q", m.View())
	}

	updated, cmd := m.Update(jobs.Snapshot{ID: task.ID, Status: jobs.StatusRunning, Stage: "summary", Percent: 55})
	if cmd == nil || !strings.Contains(updated.View(), "要約を生成中") {
		t.Fatalf("running view = %q", updated.View())
	}

	close(release)
	<-task.Done()
	updated, cmd = updated.Update(task.Snapshot())
	if cmd == nil || !strings.Contains(updated.View(), "処理完了") {
		t.Fatalf("finished view = %q", updated.View())
	}
}
