package inference

import "testing"

func TestRepairLooseLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "python dict with single quotes",
			in:   `{'content': 'hello'}`,
			want: `{"content": "hello"}`,
			ok:   true,
		},
		{
			name: "python booleans and none",
			in:   `{'content': 'x', 'done': False, 'stop': None, 'web': True}`,
			want: `{"content": "x", "done": false, "stop": null, "web": true}`,
			ok:   true,
		},
		{
			name: "escaped apostrophe inside string",
			in:   `{'content': 'it\'s fine'}`,
			want: `{"content": "it's fine"}`,
			ok:   true,
		},
		{
			name: "double quote inside single-quoted string",
			in:   `{'content': 'say "hi"'}`,
			want: `{"content": "say \"hi\""}`,
			ok:   true,
		},
		{
			name: "already strict double quotes pass through",
			in:   `{"content": "hello"}`,
			want: `{"content": "hello"}`,
			ok:   true,
		},
		{
			name: "unterminated string rejected",
			in:   `{'content': 'oops`,
			ok:   false,
		},
		{
			name: "bare identifier rejected",
			in:   `os.system('rm -rf /')`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := repairLooseLiteral(tt.in)
			if ok != tt.ok {
				t.Fatalf("repairLooseLiteral(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("repairLooseLiteral(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContentFromLine(t *testing.T) {
	if got, ok := contentFromLine(`{'content': 'loose'}`); !ok || got != "loose" {
		t.Fatalf("contentFromLine(loose) = %q, %v; want loose, true", got, ok)
	}
	if _, ok := contentFromLine(`[1, 2, 3]`); ok {
		t.Fatalf("contentFromLine(array) ok = true, want false")
	}
	if _, ok := contentFromLine(`__import__('os')`); ok {
		t.Fatalf("contentFromLine(code) ok = true, want false")
	}
}
