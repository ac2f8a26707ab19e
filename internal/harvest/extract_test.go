package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanTextStripsNoise(t *testing.T) {
	t.Parallel()

	html := `<html><head><style>body{}</style><script>var x=1;</script></head>
	<body>
		<nav>Home | About</nav>
		<header>Site Header</header>
		<main>
			<h1>Acme Pay</h1>
			<p>Payments   for   everyone.</p>
		</main>
		<aside>Ads</aside>
		<footer>Copyright</footer>
	</body></html>`

	got := CleanText(html)
	require.Contains(t, got, "Acme Pay")
	require.Contains(t, got, "Payments for everyone.")
	require.NotContains(t, got, "var x=1")
	require.NotContains(t, got, "Site Header")
	require.NotContains(t, got, "Home | About")
	require.NotContains(t, got, "Copyright")
	require.NotContains(t, got, "Ads")
}

func TestCleanTextCollapsesBlankLines(t *testing.T) {
	t.Parallel()

	got := CleanText("<body><p>one</p>\n\n\n<p>two</p></body>")
	require.Equal(t, "one\ntwo", got)
}

func TestCleanTextEmptyDocument(t *testing.T) {
	t.Parallel()

	require.Empty(t, CleanText("<body><script>only()</script></body>"))
}
