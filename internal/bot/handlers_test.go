package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"squadbot/internal/model"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		text     string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{name: "bare command", prefix: "!", text: "!help", wantName: "help", wantOK: true},
		{name: "mixed case", prefix: "!", text: "!MotD", wantName: "motd", wantOK: true},
		{name: "args trimmed", prefix: "!", text: "!motd   Raid at 8pm  ", wantName: "motd", wantArgs: "Raid at 8pm", wantOK: true},
		{name: "tab separator", prefix: "!", text: "!tips\tbob", wantName: "tips", wantArgs: "bob", wantOK: true},
		{name: "leading whitespace", prefix: "!", text: "  !botinfo", wantName: "botinfo", wantOK: true},
		{name: "multi-char prefix", prefix: "::", text: "::prs", wantName: "prs", wantOK: true},
		{name: "no prefix", prefix: "!", text: "help"},
		{name: "prefix only", prefix: "!", text: "!"},
		{name: "space after prefix", prefix: "!", text: "! help"},
		{name: "empty", prefix: "!", text: ""},
		{name: "empty prefix", prefix: "", text: "help"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, ok := ParseCommand(tt.prefix, tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.wantName, name); diff != "" {
				t.Errorf("name (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantArgs, args); diff != "" {
				t.Errorf("args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatContributors(t *testing.T) {
	tests := []struct {
		name     string
		contribs []model.Contributor
		want     string
	}{
		{
			name: "empty",
			want: "No contributors found for monitored GitHub groups.",
		},
		{
			name:     "deduplicated in order",
			contribs: []model.Contributor{{Login: "tyrion"}, {Login: "brienne"}, {Login: "tyrion"}, {Login: ""}},
			want:     "Contributing users to all monitored GitHub groups: tyrion, brienne",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatContributors(tt.contribs)); diff != "" {
				t.Errorf("FormatContributors (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatItems(t *testing.T) {
	items := []model.Item{
		{Title: "Fix login", URL: "https://github.com/cumods/tools/pull/3"},
		{Title: "Add tips", URL: "https://github.com/cumods/squadbot/pull/9"},
	}
	want := "There are currently 2 pull requests open against all monitored GitHub groups:" +
		"\n   1: https://github.com/cumods/tools/pull/3" +
		"\n   2: https://github.com/cumods/squadbot/pull/9"
	if diff := cmp.Diff(want, FormatItems("pull requests", items)); diff != "" {
		t.Errorf("FormatItems (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("No issues found for monitored GitHub groups.", FormatItems("issues", nil)); diff != "" {
		t.Errorf("FormatItems empty (-want +got):\n%s", diff)
	}
}

type namedCmd string

func (c namedCmd) Name() string { return string(c) }
func (c namedCmd) Help() string { return "help for " + string(c) + ": " + HelpPlaceholder }

func (namedCmd) Exec(context.Context, *Bot, Request, string) {}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(namedCmd("alpha"), namedCmd("Beta"))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "Beta"}, reg.Names()); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
	c, ok := reg.Lookup("BETA")
	if !ok || c.Name() != "Beta" {
		t.Errorf("Lookup(BETA) = %v, %v", c, ok)
	}
	if _, ok := reg.Lookup("gamma"); ok {
		t.Error("Lookup(gamma) found a command")
	}
	if diff := cmp.Diff("help for alpha: alpha, Beta", reg.Help(namedCmd("alpha"))); diff != "" {
		t.Errorf("Help (-want +got):\n%s", diff)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(namedCmd("motd"), namedCmd("MOTD"))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v, want duplicate command error", err)
	}
	if _, err := NewRegistry(namedCmd("")); err == nil {
		t.Fatal("empty name accepted")
	}
}

func TestDefaultCommandsHelp(t *testing.T) {
	reg, err := NewRegistry(DefaultCommands("!")...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	want := []string{"help", "botinfo", "tips", "motd", "motdoff", "motdon", "contribs", "prs", "issues"}
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
	for _, c := range reg.Commands() {
		help := reg.Help(c)
		if !strings.HasPrefix(help, "The command !"+c.Name()+" ") {
			t.Errorf("%s help = %q", c.Name(), help)
		}
		if strings.Contains(help, HelpPlaceholder) {
			t.Errorf("%s help still has placeholder", c.Name())
		}
	}
}
