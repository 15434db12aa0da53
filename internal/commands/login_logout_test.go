package commands_test

import (
	"strings"
	"testing"

	"todo/internal/app"
	"todo/internal/commands"
	"todo/internal/exitcode"
	"todo/internal/service"
)

func TestLoginCommand(t *testing.T) {
	api := newAPI(t)
	api.AddTask(service.Task{Title: "Buy milk"})
	a := newApp(t, api, false)

	stdout, stderr, code := runCommand(t, &commands.LoginCmd{}, a, []string{"alice"}, "secret\n")
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (stderr %q)", code, stderr)
	}
	if stdout != "logged in as alice\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if stderr != "Password: " {
		t.Errorf("expected only the password prompt on stderr, got %q", stderr)
	}
	if a.View() != app.ViewList || len(a.Engine().Snapshot().Tasks) != 1 {
		t.Error("expected first page loaded after login")
	}
}

func TestLoginCommand_PromptsForUsername(t *testing.T) {
	a := newApp(t, newAPI(t), false)

	_, stderr, code := runCommand(t, &commands.LoginCmd{}, a, nil, "alice\nsecret\n")
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (stderr %q)", code, stderr)
	}
	if stderr != "Username: Password: " {
		t.Errorf("unexpected prompts %q", stderr)
	}
}

func TestLoginCommand_WrongPassword(t *testing.T) {
	a := newApp(t, newAPI(t), false)

	stdout, stderr, code := runCommand(t, &commands.LoginCmd{}, a, []string{"alice"}, "nope\n")
	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "error: login failed") {
		t.Errorf("expected login failure message, got %q", stderr)
	}
	if a.Authenticated() {
		t.Error("expected to stay logged out")
	}
}

func TestLoginCommand_MissingInput(t *testing.T) {
	a := newApp(t, newAPI(t), false)

	_, stderr, code := runCommand(t, &commands.LoginCmd{}, a, []string{"alice"}, "\n")
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.HasPrefix(stderr, "Password: error: ") {
		t.Errorf("expected validation error, got %q", stderr)
	}
}

func TestLoginCommand_AlreadyLoggedIn(t *testing.T) {
	api := newAPI(t)
	a := newApp(t, api, true)

	stdout, _, code := runCommand(t, &commands.LoginCmd{}, a, []string{"alice"}, "")
	if code != exitcode.Success || stdout != "already logged in\n" {
		t.Errorf("expected already logged in, got %d %q", code, stdout)
	}
	if n := api.CountRequests("POST /token/"); n != 0 {
		t.Errorf("expected no login request, got %d", n)
	}
}

func TestLoginCommand_FetchFailureIsWarning(t *testing.T) {
	api := newAPI(t)
	api.Fail["GET /todos/"] = 500
	a := newApp(t, api, false)

	stdout, stderr, code := runCommand(t, &commands.LoginCmd{}, a, []string{"alice"}, "secret\n")
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	if stdout != "logged in as alice\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if !strings.Contains(stderr, "warning: logged in but tasks could not be loaded") {
		t.Errorf("expected warning, got %q", stderr)
	}
}

func TestRegisterCommand(t *testing.T) {
	api := newAPI(t)
	a := newApp(t, api, false)

	stdout, stderr, code := runCommand(t, &commands.RegisterCmd{}, a,
		[]string{"--email", "bob@example.com", "bob"}, "hunter22\nhunter22\n")
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (stderr %q)", code, stderr)
	}
	if stdout != "registered bob (run: todo login)\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if a.Authenticated() {
		t.Error("register must not log in")
	}

	if _, _, code := runCommand(t, &commands.LoginCmd{}, a, []string{"bob"}, "hunter22\n"); code != exitcode.Success {
		t.Errorf("expected the new account to log in, got %d", code)
	}
}

func TestRegisterCommand_PasswordMismatch(t *testing.T) {
	api := newAPI(t)
	a := newApp(t, api, false)

	_, stderr, code := runCommand(t, &commands.RegisterCmd{}, a, []string{"bob"}, "hunter22\nhunter23\n")
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "error: ") {
		t.Errorf("expected error message, got %q", stderr)
	}
	if n := api.CountRequests("POST /users/register/"); n != 0 {
		t.Errorf("expected no register request, got %d", n)
	}
}

func TestRegisterCommand_Taken(t *testing.T) {
	a := newApp(t, newAPI(t), false)

	_, stderr, code := runCommand(t, &commands.RegisterCmd{}, a, []string{"alice"}, "pw\npw\n")
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "username") {
		t.Errorf("expected field error for username, got %q", stderr)
	}
}

func TestRegisterCommand_NoUsername(t *testing.T) {
	a := newApp(t, newAPI(t), false)

	_, stderr, code := runCommand(t, &commands.RegisterCmd{}, a, nil, "")
	if code != exitcode.UserError || stderr != "error: username required\n" {
		t.Errorf("expected username required, got %d %q", code, stderr)
	}
}

func TestLogoutCommand_NotLoggedIn(t *testing.T) {
	a := newApp(t, newAPI(t), false)

	stdout, _, code := runCommand(t, &commands.LogoutCmd{}, a, nil, "")
	if code != exitcode.Success || stdout != "not logged in\n" {
		t.Errorf("expected not logged in, got %d %q", code, stdout)
	}
}

func TestLogoutCommand(t *testing.T) {
	a := newApp(t, newAPI(t), true)

	stdout, _, code := runCommand(t, &commands.LogoutCmd{}, a, nil, "")
	if code != exitcode.Success || stdout != "ok\n" {
		t.Errorf("expected ok, got %d %q", code, stdout)
	}
	if a.Authenticated() || a.View() != app.ViewAuth {
		t.Error("expected logged out")
	}
}

func TestStatusCommand(t *testing.T) {
	api := newAPI(t)

	stdout, _, code := runCommand(t, &commands.StatusCmd{}, newApp(t, api, false), nil, "")
	if code != exitcode.AuthError || stdout != "not logged in\n" {
		t.Errorf("expected not logged in, got %d %q", code, stdout)
	}

	a := newApp(t, api, true)
	stdout, _, code = runCommand(t, &commands.StatusCmd{}, a, nil, "")
	if code != exitcode.Success {
		t.Errorf("expected success, got %d", code)
	}
	if !strings.HasPrefix(stdout, "logged in as alice\nserver: "+api.URL()+"\n") {
		t.Errorf("unexpected status %q", stdout)
	}
}
