package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	// A4 in inches, margins of 10mm
	paperWidth  = 8.27
	paperHeight = 11.69
	marginInch  = 10 / 25.4

	defaultRenderTimeout = 60 * time.Second
	imageWait            = 15 * time.Second

	imagesLoaded = `Array.from(document.images).every(img => img.complete)`
)

// PDFRenderer turns a complete HTML document into PDF bytes
type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// ChromeRenderer prints HTML through a headless Chrome
type ChromeRenderer struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	logger   *slog.Logger
}

// NewChromeRenderer starts an exec allocator. execPath may be empty to let
// chromedp locate Chrome.
func NewChromeRenderer(execPath string, timeout time.Duration, logger *slog.Logger) *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeRenderer{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "render")),
	}
}

// Close releases the browser
func (r *ChromeRenderer) Close() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Render loads html into a blank tab, waits for images and prints an A4 PDF
// with backgrounds.
func (r *ChromeRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	tabCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()

	tabCtx, cancel = context.WithTimeout(tabCtx, r.timeout)
	defer cancel()

	// The tab derives from the allocator, so tie it to the caller too.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var ready bool
			err := chromedp.Poll(imagesLoaded, &ready,
				chromedp.WithPollingTimeout(imageWait),
				chromedp.WithPollingInterval(200*time.Millisecond),
			).Do(ctx)
			if err != nil {
				r.logger.WarnContext(ctx, "images still loading, printing anyway", slog.Any("err", err))
			}
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(marginInch).
				WithMarginBottom(marginInch).
				WithMarginLeft(marginInch).
				WithMarginRight(marginInch).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp error: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("empty PDF returned")
	}

	r.logger.DebugContext(ctx, "rendered pdf",
		slog.Int("bytes", len(pdf)),
		slog.Duration("elapsed", time.Since(start)))
	return pdf, nil
}
