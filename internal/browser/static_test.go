package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopPage = `<html><body>
<a class="acceptCookies" href="#">Accept &amp; Continue</a>
<div class="thumbnail"><a class="title" title="Asus VivoBook">Asus VivoBook...</a></div>
<a class="ecomerce-items-scroll-more" style="display: none">More</a>
<div class="banner" hidden>Sale</div>
</body></html>`

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func newStaticPage(t *testing.T, transport *httpmock.MockTransport) Page {
	t.Helper()
	s := NewStaticSession(Options{Transport: transport})
	t.Cleanup(func() { _ = s.Close() })

	page, err := s.NewPage(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = page.Close() })
	return page
}

func TestStaticPageNavigateAndFind(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://shop.test/laptops", htmlResponder(shopPage))

	ctx := context.Background()
	page := newStaticPage(t, transport)
	require.NoError(t, page.Navigate(ctx, "https://shop.test/laptops"))

	el, found, err := page.Find(ctx, ".acceptCookies")
	require.NoError(t, err)
	require.True(t, found)

	visible, err := el.Visible(ctx)
	require.NoError(t, err)
	assert.True(t, visible)

	err = el.Click(ctx)
	assert.True(t, errors.Is(err, ErrUnsupported), "click error = %v", err)
	assert.False(t, errors.Is(err, ErrNotInteractable), "click error = %v", err)

	_, found, err = page.Find(ctx, ".does-not-exist")
	require.NoError(t, err)
	assert.False(t, found)

	html, err := page.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "Asus VivoBook")
}

func TestStaticElementVisibility(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://shop.test/", htmlResponder(shopPage))

	ctx := context.Background()
	page := newStaticPage(t, transport)
	require.NoError(t, page.Navigate(ctx, "https://shop.test/"))

	for _, selector := range []string{".ecomerce-items-scroll-more", ".banner"} {
		el, found, err := page.Find(ctx, selector)
		require.NoError(t, err)
		require.True(t, found, selector)

		visible, err := el.Visible(ctx)
		require.NoError(t, err)
		assert.False(t, visible, selector)
	}
}

func TestStaticPageNavigateErrors(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://shop.test/gone", httpmock.NewStringResponder(404, "not found"))

	ctx := context.Background()
	page := newStaticPage(t, transport)

	assert.Error(t, page.Navigate(ctx, "https://shop.test/gone"))

	_, _, err := page.Find(ctx, ".title")
	assert.Error(t, err, "find before a successful navigation")
}

func TestStaticPageRevisitsSameURL(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://shop.test/", htmlResponder(shopPage))

	ctx := context.Background()
	page := newStaticPage(t, transport)
	require.NoError(t, page.Navigate(ctx, "https://shop.test/"))
	require.NoError(t, page.Navigate(ctx, "https://shop.test/"))

	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("selenium", Options{})
	assert.Error(t, err)
}

func TestStaticNewPageHonoursCancelledContext(t *testing.T) {
	s := NewStaticSession(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.NewPage(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
