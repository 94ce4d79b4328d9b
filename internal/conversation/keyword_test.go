package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "  ok  ", want: "ok"},
		{in: "Farmácia X\nvendedor João\tMaria", want: "Farmácia X vendedor João Maria"},
		{in: "linha 1\r\n\r\nlinha 2", want: "linha 1 linha 2"},
		{in: "muitos     espaços   no   meio ", want: "muitos espaços no meio"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanText(tc.in), "input %q", tc.in)
	}
}

func TestKeywordDetectorConfirmVariants(t *testing.T) {
	d := NewKeywordDetector("")
	for _, text := range []string{"ok", "OK", "Ok", " OK ", "ok\n", "\toK\r\n"} {
		assert.True(t, d.IsConfirmation(text), "expected %q to confirm", text)
	}
}

func TestKeywordDetectorNewOrderText(t *testing.T) {
	d := NewKeywordDetector("ok")
	for _, text := range []string{"", "okay", "ok.", "ok obrigado", "not ok", "Farmácia X, vendedor João, cliente Maria"} {
		assert.False(t, d.IsConfirmation(text), "expected %q to start a new order", text)
	}
}

func TestKeywordDetectorCustomKeyword(t *testing.T) {
	d := NewKeywordDetector("  Confirmar ")
	assert.Equal(t, "confirmar", d.Keyword())
	assert.True(t, d.IsConfirmation("CONFIRMAR"))
	assert.False(t, d.IsConfirmation("ok"))
}
