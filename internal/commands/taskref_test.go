package commands

import (
	"testing"

	"todo/internal/listsync"
	"todo/internal/service"
)

func TestParseTaskRef_NumericOnly(t *testing.T) {
	ref, err := ParseTaskRef([]string{"5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ID != "" {
		t.Errorf("expected no id, got %q", ref.ID)
	}
	if ref.Num != 5 {
		t.Errorf("expected Num 5, got %d", ref.Num)
	}
}

func TestParseTaskRef_ID(t *testing.T) {
	ref, err := ParseTaskRef([]string{"id:42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ID != "42" || ref.Num != 0 {
		t.Errorf("unexpected ref %+v", ref)
	}
}

func TestParseTaskRef_Errors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "task reference required"},
		{[]string{"a1"}, "invalid task reference: a1"},
		{[]string{"id:"}, "invalid task reference: id:"},
		{[]string{"-1"}, "invalid task reference: -1"},
		{[]string{"１"}, "invalid task reference: １"},
	}
	for _, tt := range tests {
		_, err := ParseTaskRef(tt.args)
		if err == nil {
			t.Errorf("ParseTaskRef(%q): expected error", tt.args)
			continue
		}
		if err.Error() != tt.want {
			t.Errorf("ParseTaskRef(%q): expected %q, got %q", tt.args, tt.want, err.Error())
		}
	}
}

func TestTaskRef_Resolve(t *testing.T) {
	snap := listsync.Snapshot{Tasks: []service.Task{
		{ID: "7", Title: "Buy milk"},
		{ID: "9", Title: "Walk dog"},
	}}

	task, err := TaskRef{Num: 2}.Resolve(snap)
	if err != nil || task.ID != "9" {
		t.Errorf("position 2: got %+v, %v", task, err)
	}
	task, err = TaskRef{ID: "7"}.Resolve(snap)
	if err != nil || task.Title != "Buy milk" {
		t.Errorf("id 7: got %+v, %v", task, err)
	}

	if _, err := (TaskRef{Num: 3}).Resolve(snap); err == nil || err.Error() != "task number out of range: 3" {
		t.Errorf("expected out of range, got %v", err)
	}
	if _, err := (TaskRef{ID: "8"}).Resolve(snap); err == nil || err.Error() != "task not on current page: 8" {
		t.Errorf("expected not on page, got %v", err)
	}
}
