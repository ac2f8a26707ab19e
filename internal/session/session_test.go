package session

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseMetaKeepsFirstRecord(t *testing.T) {
	t.Parallel()

	meta := &responseMeta{}
	meta.record(http.StatusFound, "https://acme.example/about")
	meta.record(http.StatusOK, "https://acme.example/home")

	require.Equal(t, http.StatusFound, meta.status())
	require.Equal(t, "https://acme.example/about", meta.finalURL("https://acme.example"))
}

func TestResponseMetaDefaults(t *testing.T) {
	t.Parallel()

	meta := &responseMeta{}
	require.Equal(t, http.StatusOK, meta.status())
	require.Equal(t, "https://acme.example", meta.finalURL("https://acme.example"))
}

// A navigation event can land while the fetcher is already reading the
// meta, so concurrent record/read must stay race-free.
func TestResponseMetaConcurrentAccess(t *testing.T) {
	t.Parallel()

	meta := &responseMeta{}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			meta.record(200+i, fmt.Sprintf("https://acme.example/p%d", i))
		}()
		go func() {
			defer wg.Done()
			_ = meta.status()
			_ = meta.finalURL("https://acme.example")
		}()
	}
	wg.Wait()

	require.NotEqual(t, 0, meta.status())
	require.NotEmpty(t, meta.finalURL("https://acme.example"))
}
