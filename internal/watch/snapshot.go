package watch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/tidwall/gjson"

	"pageguard/internal/detect"
	"pageguard/internal/extract"
	"pageguard/pkg/model"
)

const snapshotExpr = `JSON.stringify({` +
	`url: location.href,` +
	`title: document.title || "",` +
	`html: document.documentElement ? document.documentElement.outerHTML : ""})`

// snapshot reads the observable page state in one round trip.
func snapshot(ctx context.Context, c *cdp.Client) (extract.Page, error) {
	raw, err := evaluate(ctx, c, snapshotExpr)
	if err != nil {
		return extract.Page{}, err
	}
	return extract.Page{
		URL:   gjson.Get(raw, "url").String(),
		Title: gjson.Get(raw, "title").String(),
		HTML:  gjson.Get(raw, "html").String(),
	}, nil
}

func currentURL(ctx context.Context, c *cdp.Client) (string, error) {
	return evaluate(ctx, c, "location.href")
}

// evaluate runs an expression returning a string value.
func evaluate(ctx context.Context, c *cdp.Client, expr string) (string, error) {
	args := runtime.NewEvaluateArgs(expr).SetReturnByValue(true)
	rep, err := c.Runtime.Evaluate(ctx, args)
	if err != nil {
		return "", err
	}
	if rep.ExceptionDetails != nil {
		return "", errors.New("page evaluation threw")
	}
	var s string
	if err := json.Unmarshal(rep.Result.Value, &s); err != nil {
		return "", err
	}
	return s, nil
}

func (w *Watcher) snapshotFn(c *cdp.Client) detect.Snapshot {
	return func(ctx context.Context) (model.Extraction, error) {
		sctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		p, err := snapshot(sctx, c)
		if err != nil {
			return model.Extraction{}, err
		}
		return w.extractor.Extract(sctx, p), nil
	}
}
