package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Command
		wantErr bool
	}{
		{"no args defaults to serve", []string{}, CommandServe, false},
		{"nil args defaults to serve", nil, CommandServe, false},
		{"serve", []string{"serve"}, CommandServe, false},
		{"migrate", []string{"migrate"}, CommandMigrate, false},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck, false},
		{"help", []string{"help"}, CommandHelp, false},
		{"extra args are ignored", []string{"migrate", "--flag", "value"}, CommandMigrate, false},
		{"typo is rejected", []string{"migrat"}, "", true},
		{"case matters", []string{"Serve"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestWriteUsage_ListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	writeUsage(&buf)

	for _, c := range commands {
		if !strings.Contains(buf.String(), string(c.name)) {
			t.Errorf("usage does not mention %q:\n%s", c.name, buf.String())
		}
	}
}

func TestRun_Help(t *testing.T) {
	var buf bytes.Buffer
	if err := Run(&buf, []string{"help"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "usage: donetracker") {
		t.Errorf("help output = %q", buf.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	err := Run(&buf, []string{"worker"})
	if err == nil || !strings.Contains(err.Error(), `"worker"`) {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if !strings.Contains(buf.String(), "commands:") {
		t.Errorf("usage not printed on unknown command: %q", buf.String())
	}
}
