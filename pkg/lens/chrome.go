package lens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/dtnitsch/lens-scraper/models"
	"github.com/go-rod/rod/lib/launcher"
)

// opTimeout bounds browser calls that have no wait of their own.
const opTimeout = 30 * time.Second

const minQueryWait = 100 * time.Millisecond

var errInterruptedLaunch = errors.New("launch timed out or was canceled")

// Launch starts Chrome with fingerprint evasion applied. The configured
// chrome_path or a locally installed browser is tried first; if that fails a
// managed browser is downloaded and launched once more.
func Launch(ctx context.Context, logger *slog.Logger, cfg models.BrowserConfig) (Page, error) {
	execPath := cfg.ChromePath
	if execPath == "" {
		if p, ok := launcher.LookPath(); ok {
			execPath = p
		}
	}

	p, err := launch(ctx, logger, cfg, execPath)
	if err == nil {
		return p, nil
	}
	logger.Warn("Local browser failed, trying a managed browser", "path", execPath, "error", err)

	managed, dlErr := launcher.NewBrowser().Get()
	if dlErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowserUnavailable, errors.Join(err, dlErr))
	}
	p, err = launch(ctx, logger, cfg, managed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowserUnavailable, err)
	}
	return p, nil
}

func launch(ctx context.Context, logger *slog.Logger, cfg models.BrowserConfig, execPath string) (*chromePage, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug("chromedp", "message", fmt.Sprintf(format, args...))
		}),
	)
	p := &chromePage{ctx: tabCtx, cancel: func() { tabCancel(); allocCancel() }}

	// The first Run starts the browser process and ties it to the context it is
	// given, so it runs on the tab context with a timer bounding the launch.
	launchTimer := time.AfterFunc(opTimeout, p.cancel)
	stopWatch := context.AfterFunc(ctx, p.cancel)
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	timerStopped := launchTimer.Stop()
	watchStopped := stopWatch()
	if err == nil && (!timerStopped || !watchStopped) {
		err = errInterruptedLaunch
	}
	if err != nil {
		p.cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Info("Browser started", "path", execPath, "headless", cfg.Headless)
	return p, nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// bound derives a call context from the tab that also ends with ctx.
func (p *chromePage) bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithTimeout(p.ctx, d)
	stop := context.AfterFunc(ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) run(ctx context.Context, d time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	callCtx, cancel := p.bound(ctx, d)
	defer cancel()
	return chromedp.Run(callCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, opTimeout, chromedp.Navigate(url))
}

func (p *chromePage) Evaluate(ctx context.Context, script string, res any) error {
	return p.run(ctx, opTimeout, chromedp.Evaluate(script, res))
}

func (p *chromePage) Query(ctx context.Context, q Query) (*Element, error) {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if q.By == ByXPath {
		opts = []chromedp.QueryOption{chromedp.BySearch}
	}
	if q.Visible {
		opts = append(opts, chromedp.NodeVisible)
	} else {
		opts = append(opts, chromedp.NodeReady)
	}

	wait := q.Wait
	if wait <= 0 {
		wait = minQueryWait
	}

	var nodes []*cdp.Node
	err := p.run(ctx, wait, chromedp.Nodes(q.Selector, &nodes, opts...))
	if errors.Is(err, context.DeadlineExceeded) || (err == nil && len(nodes) == 0) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	n := nodes[0]
	return &Element{Tag: n.LocalName, Type: n.AttributeValue("type"), node: n}, nil
}

func (p *chromePage) MoveTo(ctx context.Context, el *Element) error {
	if el == nil || el.node == nil {
		return ErrNotFound
	}
	return p.run(ctx, opTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(el.node.NodeID).Do(ctx); err != nil {
			return err
		}
		box, err := dom.GetBoxModel().WithNodeID(el.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		x, y := center(box.Content)
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
}

func center(q dom.Quad) (float64, float64) {
	if len(q) < 8 {
		return 0, 0
	}
	return (q[0] + q[2] + q[4] + q[6]) / 4, (q[1] + q[3] + q[5] + q[7]) / 4
}

func (p *chromePage) Click(ctx context.Context, el *Element) error {
	if el == nil || el.node == nil {
		return ErrNotFound
	}
	return p.run(ctx, opTimeout, chromedp.MouseClickNode(el.node))
}

func (p *chromePage) SetFiles(ctx context.Context, el *Element, files []string) error {
	if el == nil || el.node == nil {
		return ErrNotFound
	}
	return p.run(ctx, opTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.SetFileInputFiles(files).WithNodeID(el.node.NodeID).Do(ctx)
	}))
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
