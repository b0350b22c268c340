package history

import (
	"strconv"
	"testing"

	"github.com/svieira1985/gpt-webassist-sam/internal/shared/models"
)

func msgs(n int) []models.Message {
	out := make([]models.Message, n)
	for i := range out {
		out[i] = models.Message{Role: models.RoleUser, Content: strconv.Itoa(i)}
	}
	return out
}

func TestWindow(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25} {
		in := msgs(n)
		got := Window(in, DefaultSize)
		want := n
		if want > 10 {
			want = 10
		}
		if len(got) != want {
			t.Fatalf("n=%d: len %d want %d", n, len(got), want)
		}
		for i, m := range got {
			if m.Content != strconv.Itoa(n-want+i) {
				t.Fatalf("n=%d: position %d holds %q", n, i, m.Content)
			}
		}
	}
}

func TestWindow_DoesNotAlias(t *testing.T) {
	in := msgs(3)
	got := Window(in, 0)
	got[0].Content = "changed"
	if in[0].Content != "0" {
		t.Fatalf("window aliases input")
	}
}
