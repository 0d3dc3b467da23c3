package scriptrunner

import "testing"

const compiledContent = "You are a helpful assistant. Say hello to TestUser!"
const compiledPath = ".apm/compiled/hello-world.txt"
const promptFile = "hello-world.prompt.md"

func TestTransformRuntimeCommand(t *testing.T) {
	cases := []struct {
		name     string
		original string
		want     string
	}{
		{"simple codex", "codex hello-world.prompt.md", "codex exec"},
		{"codex with flags", "codex --skip-git-repo-check hello-world.prompt.md", "codex exec --skip-git-repo-check"},
		{"codex multiple flags", "codex --verbose --skip-git-repo-check hello-world.prompt.md", "codex exec --verbose --skip-git-repo-check"},
		{"env var simple", "DEBUG=true codex hello-world.prompt.md", "DEBUG=true codex exec"},
		{"env var with flags", "DEBUG=true codex --skip-git-repo-check hello-world.prompt.md", "DEBUG=true codex exec --skip-git-repo-check"},
		{"llm simple", "llm hello-world.prompt.md", "llm"},
		{"llm with options", "llm hello-world.prompt.md --model gpt-4", "llm --model gpt-4"},
		{"bare file", "hello-world.prompt.md", "codex exec"},
		{"fallback unrecognized", "unknown-command hello-world.prompt.md", "unknown-command " + compiledPath},
		{"copilot simple", "copilot hello-world.prompt.md", "copilot"},
		{"copilot with flags", "copilot --log-level all --log-dir copilot-logs hello-world.prompt.md", "copilot --log-level all --log-dir copilot-logs"},
		{"copilot removes -p flag", "copilot -p hello-world.prompt.md --log-level all", "copilot --log-level all"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TransformRuntimeCommand(tc.original, promptFile, compiledContent, compiledPath)
			if got != tc.want {
				t.Errorf("TransformRuntimeCommand(%q) = %q, want %q", tc.original, got, tc.want)
			}
		})
	}
}

func TestDetectRuntime(t *testing.T) {
	cases := []struct {
		command string
		want    string
	}{
		{"copilot --log-level all", "copilot"},
		{"codex exec --skip-git-repo-check", "codex"},
		{"llm --model gpt-4", "llm"},
		{"unknown-command", "unknown"},
	}
	for _, tc := range cases {
		if got := DetectRuntime(tc.command); got != tc.want {
			t.Errorf("DetectRuntime(%q) = %q, want %q", tc.command, got, tc.want)
		}
	}
}
