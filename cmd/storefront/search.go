package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"storefront-bff/internal/apperr"
	"storefront-bff/internal/models"
	"storefront-bff/internal/notify"
	"storefront-bff/internal/search"
	"storefront-bff/internal/tokenstore"
)

func locationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{Name: "lat", Usage: "Your latitude, for distances to sellers"},
		&cli.FloatFlag{Name: "lon", Usage: "Your longitude, for distances to sellers"},
	}
}

func (a *app) searchCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "search",
			Usage:     "Search products or sellers in plain language",
			ArgsUsage: "<query...>",
			Flags:     locationFlags(),
			Action:    a.action(a.search),
		},
		{
			Name:  "voice",
			Usage: "Read transcript updates from stdin and search when the speaker pauses",
			Flags: append(locationFlags(),
				&cli.DurationFlag{Name: "pause", Value: search.DefaultPause},
			),
			Action: a.action(a.voice),
		},
		{
			Name:  "listen",
			Usage: "Print push notifications as they arrive",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "gateway", Value: "http://localhost:8080", Sources: cli.EnvVars("GATEWAY_URL")},
			},
			Action: a.action(a.listen),
		},
	}
}

func (a *app) searcher() *search.Searcher {
	var geo search.Geocoder
	if a.cfg.GeocoderURL != "" {
		geo = search.NewHTTPGeocoder(a.cfg.GeocoderURL)
	}
	return search.NewSearcher(a.api, geo)
}

func origin(cmd *cli.Command) *search.Point {
	if !cmd.IsSet("lat") || !cmd.IsSet("lon") {
		return nil
	}
	return &search.Point{Lat: cmd.Float("lat"), Lon: cmd.Float("lon")}
}

func (a *app) printResult(res *search.Result) {
	switch res.Intent {
	case models.IntentSellers:
		fmt.Fprintf(a.out, "Sellers for %q:\n", res.Query)
		for _, s := range res.Sellers {
			fmt.Fprintf(a.out, "  %s  %s  (%s)\n", s.Name, s.Address, s.Display)
		}
	default:
		fmt.Fprintf(a.out, "Products for %q:\n", res.Query)
		for _, g := range res.Products {
			fmt.Fprintf(a.out, "  %s  %s  %.2f\n", g.ID, g.Name, g.Price)
		}
	}
	if len(res.Sellers) == 0 && len(res.Products) == 0 {
		fmt.Fprintln(a.out, "  nothing found")
	}
}

func (a *app) search(ctx context.Context, cmd *cli.Command) error {
	res, err := a.searcher().Search(ctx, strings.Join(cmd.Args().Slice(), " "), origin(cmd))
	if err != nil {
		return err
	}
	a.printResult(res)
	return nil
}

// voice treats each stdin line as the full transcript so far, the way a
// speech recognizer reports partial results.
func (a *app) voice(ctx context.Context, cmd *cli.Command) error {
	s := a.searcher()
	from := origin(cmd)
	pause := cmd.Duration("pause")

	var busy sync.Mutex
	d := search.NewDebouncer(pause, func(transcript string) {
		busy.Lock()
		defer busy.Unlock()
		res, err := s.Search(ctx, transcript, from)
		if err != nil {
			fmt.Fprintln(a.errOut, "Search failed:", message(err))
			return
		}
		a.printResult(res)
	})
	defer d.Stop()

	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		d.Update(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Let the final utterance finish its pause.
	select {
	case <-time.After(pause + 100*time.Millisecond):
	case <-ctx.Done():
	}
	busy.Lock()
	defer busy.Unlock()
	return nil
}

// listen streams notifications from the gateway. With a file token store it
// also stops when another process signs out.
func (a *app) listen(ctx context.Context, cmd *cli.Command) error {
	tokens, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	if tokens.Empty() {
		return fmt.Errorf("%w: run `storefront login` first", apperr.ErrUnauthorized)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if fs, ok := a.store.(*tokenstore.FileStore); ok {
		g.Go(func() error {
			return fs.Watch(gCtx, func(t tokenstore.Tokens) {
				if t.Empty() {
					fmt.Fprintln(a.out, "Signed out in another session")
					cancel()
				}
			})
		})
	}

	g.Go(func() error {
		defer cancel()
		return a.stream(gCtx, cmd.String("gateway"), tokens.Token)
	})

	return g.Wait()
}

func (a *app) stream(ctx context.Context, gateway, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(gateway, "/")+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Join(apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &apperr.APIError{Status: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	fmt.Fprintln(a.out, "Listening for notifications, Ctrl-C to stop")
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var msg notify.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			slog.Warn("bad event payload", "error", err)
			continue
		}
		fmt.Fprintf(a.out, "[%s] %s: %s\n", msg.SentAt.Format("15:04:05"), msg.Notification.Title, msg.Notification.Body)
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
