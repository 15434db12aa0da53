package commands_test

import (
	"testing"

	"todo/internal/commands"
)

func TestRegistry_FindByAlias(t *testing.T) {
	cmd, ok := commands.DefaultRegistry.Find("ls")
	if !ok || cmd.Name() != "list" {
		t.Fatalf("expected ls to resolve to list, got %v", cmd)
	}
	if _, ok := commands.DefaultRegistry.Find("lists"); ok {
		t.Error("unexpected command lists")
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := commands.NewRegistry()
	if err := r.Register(&commands.ListCmd{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(&commands.ListCmd{}); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
	if err := r.Register(&commands.DoneCmd{}); err != nil {
		t.Fatalf("register done: %v", err)
	}
	if all := r.All(); len(all) != 2 || all[0].Name() != "done" || all[1].Name() != "list" {
		t.Errorf("expected [done list], got %v", all)
	}
}
