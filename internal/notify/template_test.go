package notify

import "testing"

func TestRender(t *testing.T) {
	t.Parallel()

	ev := &EventRecord{
		Fields: map[string]string{
			"title":    "Flood warning",
			"region":   "Lagos",
			"severity": "high",
		},
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"no placeholders", "plain text", "plain text"},
		{"single placeholder", "{{region}} alert", "Lagos alert"},
		{"multiple placeholders", "{{severity}}: {{title}} in {{region}}", "high: Flood warning in Lagos"},
		{"whitespace inside braces", "{{ region }} and {{  severity  }}", "Lagos and high"},
		{"unresolved renders empty", "before {{missing}} after", "before  after"},
		{"repeated placeholder", "{{region}}/{{region}}", "Lagos/Lagos"},
		{"single braces untouched", "{region}", "{region}"},
		{"empty template", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Render(tt.tmpl, ev); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestRenderNilFields(t *testing.T) {
	t.Parallel()

	ev := &EventRecord{}
	if got := Render("{{title}}", ev); got != "" {
		t.Errorf("Render with nil fields = %q, want empty", got)
	}
}
