package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"github.com/terminwatch/terminwatch/internal/scrape"
)

// FakeFetcher is a stand-in for real booking pages in local/demo setups.
// It renders a deterministic termin-online style calendar per URL: most URLs
// get the "no appointments" page, some get a few open days.
type FakeFetcher struct{}

func New() *FakeFetcher { return &FakeFetcher{} }

func (f *FakeFetcher) Fetch(ctx context.Context, targetURL string) (scrape.Result, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(targetURL))
	v := h.Sum32()

	next := time.Now().UTC().AddDate(0, 1, 0)
	month := [...]string{
		"Januar", "Februar", "März", "April", "Mai", "Juni",
		"Juli", "August", "September", "Oktober", "November", "Dezember",
	}[next.Month()-1]

	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><div class="calendar_month">%s %d</div><table>`, month, next.Year())

	// 25% of URLs have open days.
	if v%4 == 0 {
		for _, day := range []uint32{v%27 + 1, v%13 + 2} {
			fmt.Fprintf(&b, `<td class="nat_calendar_day_available">%d</td>`, day)
		}
	} else {
		b.WriteString(`<td>Derzeit keine Termine verfügbar</td>`)
	}
	b.WriteString(`</table></body></html>`)

	return scrape.Result{Body: b.String(), HTTPStatus: http.StatusOK}, nil
}
