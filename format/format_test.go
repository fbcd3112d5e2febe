package format

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var expiryShape = regexp.MustCompile(`^\d{0,2}(/\d{0,2})?$`)

func randomInput(r *rand.Rand) string {
	const alphabet = "0123456789 -/abcXYZ.\t"
	n := r.Intn(30)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[r.Intn(len(alphabet))])
	}
	return b.String()
}

func TestCardNumber(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"abc", ""},
		{"1", "1"},
		{"1234", "1234"},
		{"12345", "1234 5"},
		{"1234567890123456", "1234 5678 9012 3456"},
		{"1234 5678-9012x3456", "1234 5678 9012 3456"},
		{"12345678901234567890", "1234 5678 9012 3456 7890"},
		{"  1234 ", "1234"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CardNumber(c.in), "input %q", c.in)
	}
}

func TestCardNumber_GroupingProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		in := randomInput(r)
		out := CardNumber(in)

		require.Equal(t, Digits(in), strings.ReplaceAll(out, " ", ""))
		require.False(t, strings.HasPrefix(out, " "), "leading space in %q", out)
		require.False(t, strings.HasSuffix(out, " "), "trailing space in %q", out)
		require.NotContains(t, out, "  ")

		groups := strings.Split(out, " ")
		for j, g := range groups {
			if out == "" {
				break
			}
			if j < len(groups)-1 {
				require.Len(t, g, 4, "group %d of %q", j, out)
			} else {
				require.True(t, len(g) >= 1 && len(g) <= 4, "last group of %q", out)
			}
		}
	}
}

func TestExpiry(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"1", "1"},
		{"12", "12/"},
		{"123", "12/3"},
		{"1225", "12/25"},
		{"12/25", "12/25"},
		{"122599", "12/25"},
		{"a1b2c", "12/"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Expiry(c.in), "input %q", c.in)
	}
}

func TestExpiry_ShapeProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		out := Expiry(randomInput(r))
		require.LessOrEqual(t, len(out), 5)
		require.Regexp(t, expiryShape, out)
	}
}

func TestCVV(t *testing.T) {
	require.Equal(t, "123", CVV("1a2b3"))
	require.Equal(t, "", CVV("abc"))
	require.Equal(t, "12345", CVV("12345"))
}

func TestPreviewOr(t *testing.T) {
	require.Equal(t, PlaceholderCardNumber, PreviewOr("", PlaceholderCardNumber))
	require.Equal(t, "1234", PreviewOr("1234", PlaceholderCardNumber))
}
