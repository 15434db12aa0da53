package service_test

import (
	"encoding/json"
	"testing"
	"time"

	"todo/internal/service"
)

func TestTask_UnmarshalDueDate(t *testing.T) {
	tests := []struct {
		name string
		due  string
		want *time.Time
	}{
		{"rfc3339", `"2026-03-01T09:30:00Z"`, ptr(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))},
		{"fraction with offset", `"2026-03-01T09:30:00.250+02:00"`, ptr(time.Date(2026, 3, 1, 7, 30, 0, 250e6, time.UTC))},
		{"no offset", `"2026-03-01T09:30:00"`, ptr(time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local))},
		{"no offset with fraction", `"2026-03-01T09:30:00.123456"`, ptr(time.Date(2026, 3, 1, 9, 30, 0, 123456000, time.Local))},
		{"date only", `"2026-03-01"`, ptr(time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local))},
		{"null", `null`, nil},
		{"empty", `""`, nil},
		{"garbage", `"next tuesday"`, nil},
		{"number", `12`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := `{"id":7,"title":"Pay rent","completed":false,"priority":"H","due_date":` + tt.due + `}`
			var task service.Task
			if err := json.Unmarshal([]byte(data), &task); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if task.ID != "7" || task.Title != "Pay rent" || task.Priority != service.PriorityHigh {
				t.Errorf("other fields lost: %+v", task)
			}
			switch {
			case tt.want == nil && task.DueDate != nil:
				t.Errorf("expected no due date, got %v", task.DueDate)
			case tt.want != nil && task.DueDate == nil:
				t.Errorf("expected due %v, got none", tt.want)
			case tt.want != nil && !task.DueDate.Equal(*tt.want):
				t.Errorf("expected due %v, got %v", tt.want, task.DueDate)
			}
		})
	}
}

func TestTask_UnmarshalPageWithBadDueDate(t *testing.T) {
	data := `[{"id":1,"title":"a","due_date":"2026-03-01T09:30:00"},{"id":2,"title":"b","due_date":"soon"},{"id":3,"title":"c"}]`
	var tasks []service.Task
	if err := json.Unmarshal([]byte(data), &tasks); err != nil {
		t.Fatalf("page should decode: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].DueDate == nil || tasks[1].DueDate != nil || tasks[2].DueDate != nil {
		t.Errorf("unexpected due dates: %v %v %v", tasks[0].DueDate, tasks[1].DueDate, tasks[2].DueDate)
	}
}

func ptr(t time.Time) *time.Time { return &t }
