package core

import "testing"

func TestChatRelayBacklog(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		posts []string
		want  []string
	}{
		{"disabled", 0, []string{"a", "b"}, nil},
		{"under limit", 3, []string{"a", "b"}, []string{"a", "b"}},
		{"keeps newest", 2, []string{"a", "b", "c"}, []string{"b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewChatRelay(tt.limit)
			for _, text := range tt.posts {
				r.Post(ChatMessage{From: "x", Text: text})
			}
			got := r.Backlog()
			if len(got) != len(tt.want) {
				t.Fatalf("backlog = %+v, want %v", got, tt.want)
			}
			for i, msg := range got {
				if msg.Text != tt.want[i] {
					t.Fatalf("backlog[%d] = %q, want %q", i, msg.Text, tt.want[i])
				}
			}
		})
	}
}
