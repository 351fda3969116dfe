package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "bom dia", "bom dia"},
		{"script content dropped", "<script>x</script>hello", "hello"},
		{"tags stripped", "<b>oi</b> <i>tudo</i> bem", "oi tudo bem"},
		{"attributes stripped", `<img src=x onerror=alert(1)>hi`, "hi"},
		{"markup only", "<b><i></i></b>", ""},
		{"whitespace trimmed", "  oi  ", "oi"},
		{"style content dropped", "<style>p{}</style>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIsDeterministic(t *testing.T) {
	const in = `<div onclick="x()">olá</div> mundo`
	assert.Equal(t, Clean(in), Clean(in))
}
