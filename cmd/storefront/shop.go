package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"storefront-bff/internal/apperr"
	"storefront-bff/internal/favorites"
	"storefront-bff/internal/models"
	"storefront-bff/internal/pagination"
	"storefront-bff/internal/services"
)

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Value: 1},
		&cli.IntFlag{Name: "page-size", Value: pagination.DefaultPageSize},
	}
}

func (a *app) shopCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "gadgets",
			Usage: "List gadgets",
			Flags: append(pageFlags(),
				&cli.StringFlag{Name: "query", Aliases: []string{"q"}},
				&cli.StringFlag{Name: "category"},
				&cli.StringFlag{Name: "brand"},
			),
			Action: a.action(a.gadgets),
		},
		{
			Name:      "gadget",
			Usage:     "Show one gadget",
			ArgsUsage: "<id>",
			Action:    a.action(a.gadget),
		},
		{
			Name:      "favorite",
			Usage:     "Toggle a gadget in your favorites",
			ArgsUsage: "<id>",
			Action:    a.action(a.favorite),
		},
		{
			Name:   "favorites",
			Usage:  "List your favorite gadgets",
			Action: a.action(a.listFavorites),
		},
		{
			Name:   "cart",
			Usage:  "Show or change your cart",
			Action: a.action(a.showCart),
			Commands: []*cli.Command{
				{Name: "add", ArgsUsage: "<gadget-id> [quantity]", Action: a.action(a.cartAdd)},
				{Name: "set", ArgsUsage: "<gadget-id> <quantity>", Action: a.action(a.cartSet)},
				{Name: "remove", ArgsUsage: "<gadget-id>", Action: a.action(a.cartRemove)},
			},
		},
		{
			Name:  "orders",
			Usage: "List your orders, or the orders you fulfil with --seller",
			Flags: append(pageFlags(),
				&cli.BoolFlag{Name: "seller"},
				&cli.StringFlag{Name: "status"},
			),
			Action: a.action(a.orders),
		},
		{
			Name:      "cancel-order",
			Usage:     "Cancel a pending order",
			ArgsUsage: "<id>",
			Action:    a.action(a.cancelOrder),
		},
		{
			Name:      "order-status",
			Usage:     "Move an order you fulfil to a new status",
			ArgsUsage: "<id> <status>",
			Action:    a.action(a.orderStatus),
		},
		{
			Name:      "reviews",
			Usage:     "List reviews of a gadget",
			ArgsUsage: "<gadget-id>",
			Action:    a.action(a.reviews),
		},
		{
			Name:      "review",
			Usage:     "Review a gadget",
			ArgsUsage: "<gadget-id>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "rating", Aliases: []string{"r"}},
				&cli.StringFlag{Name: "comment", Aliases: []string{"m"}},
			},
			Action: a.action(a.review),
		},
		{
			Name:   "wallet",
			Usage:  "Show wallet balance and transactions",
			Action: a.action(a.wallet),
		},
		{
			Name:  "notifications",
			Usage: "List notifications",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "read", Usage: "Mark the notification with this id as read"},
			},
			Action: a.action(a.notifications),
		},
		{
			Name:   "sellers",
			Usage:  "List sellers",
			Action: a.action(a.sellers),
		},
		a.catalogCommand("categories", catalogOps{
			list:   a.listCategories,
			create: func(ctx context.Context, name string) error { _, err := a.svc.CreateCategory(ctx, name); return err },
			rename: func(ctx context.Context, id, name string) error { _, err := a.svc.UpdateCategory(ctx, id, name); return err },
			remove: func(ctx context.Context, id string) error { return a.svc.DeleteCategory(ctx, id) },
		}),
		a.catalogCommand("brands", catalogOps{
			list:   a.listBrands,
			create: func(ctx context.Context, name string) error { _, err := a.svc.CreateBrand(ctx, name); return err },
			rename: func(ctx context.Context, id, name string) error { _, err := a.svc.UpdateBrand(ctx, id, name); return err },
			remove: func(ctx context.Context, id string) error { return a.svc.DeleteBrand(ctx, id) },
		}),
	}
}

func requireArg(cmd *cli.Command, n int, what string) (string, error) {
	v := strings.TrimSpace(cmd.Args().Get(n))
	if v == "" {
		return "", fmt.Errorf("%w: %s required", apperr.ErrInvalidInput, what)
	}
	return v, nil
}

func listParams(cmd *cli.Command) services.ListParams {
	p := services.ListParams{Page: int(cmd.Int("page")), PageSize: int(cmd.Int("page-size"))}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = pagination.DefaultPageSize
	}
	return p
}

// fetchPage loads page p.Page and, when it lies past the last page, loads
// the last page instead. Page counts use the page size the backend applied.
func fetchPage[T any](ctx context.Context, p services.ListParams, fetch func(context.Context, services.ListParams) (*models.Page[T], error)) (*models.Page[T], pagination.Pager, int, error) {
	page, err := fetch(ctx, p)
	if err != nil {
		return nil, pagination.Pager{}, 0, err
	}
	size := p.PageSize
	if page.PageSize > 0 {
		size = page.PageSize
	}
	pager := pagination.Pager{Total: page.Total, PageSize: size}
	if clamped := pager.Clamp(p.Page); clamped != p.Page {
		p.Page = clamped
		if page, err = fetch(ctx, p); err != nil {
			return nil, pager, 0, err
		}
	}
	return page, pager, p.Page, nil
}

func (a *app) printPager(pager pagination.Pager, current int) {
	var b strings.Builder
	fmt.Fprintf(&b, "Page %d of %d:", current, pager.TotalPages())
	if pager.HasPrev(current) {
		b.WriteString(" <")
	}
	for _, n := range pager.Window(current, 5) {
		if n == current {
			fmt.Fprintf(&b, " [%d]", n)
		} else {
			fmt.Fprintf(&b, " %d", n)
		}
	}
	if pager.HasNext(current) {
		b.WriteString(" >")
	}
	fmt.Fprintln(a.out, b.String())
}

func heart(on bool) string {
	if on {
		return "♥"
	}
	return ""
}

func (a *app) gadgets(ctx context.Context, cmd *cli.Command) error {
	p := listParams(cmd)
	p.Query = cmd.String("query")
	p.CategoryID = cmd.String("category")
	p.BrandID = cmd.String("brand")

	page, pager, current, err := fetchPage(ctx, p, a.svc.ListGadgets)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tRATING\t")
	for _, g := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%.1f\t%s\n", g.ID, g.Name, g.Price, g.Stock, g.Rating, heart(g.Favorited))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.printPager(pager, current)
	return nil
}

func (a *app) gadget(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "gadget id")
	if err != nil {
		return err
	}
	g, err := a.svc.GetGadget(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s\n%s\nprice: %.2f  stock: %d  rating: %.1f\n", g.Name, heart(g.Favorited), g.Description, g.Price, g.Stock, g.Rating)
	return nil
}

func (a *app) favorite(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "gadget id")
	if err != nil {
		return err
	}
	g, err := a.svc.GetGadget(ctx, id)
	if err != nil {
		return err
	}

	state := favorites.NewState(a.svc)
	state.Seed(map[string]bool{id: g.Favorited})
	on, err := state.Toggle(ctx, id)
	if err != nil {
		fmt.Fprintf(a.out, "%s stays %s\n", g.Name, favoriteWord(state.Shown(id)))
		return err
	}
	fmt.Fprintf(a.out, "%s %s\n", g.Name, favoriteWord(on))
	return nil
}

func favoriteWord(on bool) string {
	if on {
		return "added to favorites"
	}
	return "not in favorites"
}

func (a *app) listFavorites(ctx context.Context, _ *cli.Command) error {
	items, err := a.svc.ListFavorites(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No favorites yet")
		return nil
	}
	for _, g := range items {
		fmt.Fprintf(a.out, "%s  %s  %.2f\n", g.ID, g.Name, g.Price)
	}
	return nil
}

func (a *app) printCart(c *models.Cart) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GADGET\tNAME\tQTY\tPRICE")
	for _, it := range c.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\n", it.GadgetID, it.Name, it.Quantity, it.Price)
	}
	_ = tw.Flush()
	fmt.Fprintf(a.out, "Total: %.2f\n", c.Total)
}

func (a *app) showCart(ctx context.Context, _ *cli.Command) error {
	c, err := a.svc.GetCart(ctx)
	if err != nil {
		return err
	}
	a.printCart(c)
	return nil
}

func quantityArg(cmd *cli.Command, n int, fallback int) (int, error) {
	raw := cmd.Args().Get(n)
	if raw == "" {
		if fallback > 0 {
			return fallback, nil
		}
		return 0, fmt.Errorf("%w: quantity required", apperr.ErrInvalidInput)
	}
	q, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: quantity %q is not a number", apperr.ErrInvalidInput, raw)
	}
	return q, nil
}

func (a *app) cartAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "gadget id")
	if err != nil {
		return err
	}
	qty, err := quantityArg(cmd, 1, 1)
	if err != nil {
		return err
	}
	c, err := a.svc.AddToCart(ctx, id, qty)
	if err != nil {
		return err
	}
	a.printCart(c)
	return nil
}

func (a *app) cartSet(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "gadget id")
	if err != nil {
		return err
	}
	qty, err := quantityArg(cmd, 1, 0)
	if err != nil {
		return err
	}
	c, err := a.svc.UpdateCartItem(ctx, id, qty)
	if err != nil {
		return err
	}
	a.printCart(c)
	return nil
}

func (a *app) cartRemove(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "gadget id")
	if err != nil {
		return err
	}
	if err := a.svc.RemoveFromCart(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Removed from cart")
	return nil
}

func (a *app) orders(ctx context.Context, cmd *cli.Command) error {
	p := listParams(cmd)
	p.Status = cmd.String("status")

	fetch := a.svc.ListMyOrders
	if cmd.Bool("seller") {
		fetch = a.svc.ListSellerOrders
	}
	page, pager, current, err := fetchPage(ctx, p, fetch)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tAMOUNT\tCREATED")
	for _, o := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", o.ID, o.Status, o.Amount, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.printPager(pager, current)
	return nil
}

func (a *app) cancelOrder(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "order id")
	if err != nil {
		return err
	}
	o, err := a.svc.CancelOrder(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order %s is now %s\n", o.ID, o.Status)
	return nil
}

func (a *app) orderStatus(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "order id")
	if err != nil {
		return err
	}
	status, err := requireArg(cmd, 1, "status")
	if err != nil {
		return err
	}
	o, err := a.svc.UpdateSellerOrderStatus(ctx, id, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order %s is now %s\n", o.ID, o.Status)
	return nil
}

func (a *app) reviews(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "gadget id")
	if err != nil {
		return err
	}
	list, err := a.svc.ListReviews(ctx, id)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No reviews yet")
		return nil
	}
	for _, r := range list {
		fmt.Fprintf(a.out, "%s %s\n  %s\n", strings.Repeat("*", r.Rating), r.UserName, r.Comment)
	}
	return nil
}

func (a *app) review(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "gadget id")
	if err != nil {
		return err
	}
	r, err := a.svc.SubmitReview(ctx, services.ReviewInput{
		GadgetID: id,
		Rating:   int(cmd.Int("rating")),
		Comment:  cmd.String("comment"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Review %s posted\n", r.ID)
	return nil
}

func (a *app) wallet(ctx context.Context, _ *cli.Command) error {
	w, err := a.svc.GetWallet(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Balance: %.2f %s\n", w.Balance, w.Currency)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, t := range w.Transactions {
		fmt.Fprintf(tw, "%s\t%s\t%+.2f\n", t.CreatedAt.Format("2006-01-02"), t.Kind, t.Amount)
	}
	return tw.Flush()
}

func (a *app) notifications(ctx context.Context, cmd *cli.Command) error {
	if id := cmd.String("read"); id != "" {
		if err := a.svc.MarkNotificationRead(ctx, id); err != nil {
			return err
		}
	}
	list, err := a.svc.ListNotifications(ctx)
	if err != nil {
		return err
	}
	for _, n := range list {
		mark := "*"
		if n.Read {
			mark = " "
		}
		fmt.Fprintf(a.out, "%s %s  %s: %s\n", mark, n.ID, n.Title, n.Body)
	}
	return nil
}

func (a *app) sellers(ctx context.Context, _ *cli.Command) error {
	list, err := a.svc.ListSellers(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		fmt.Fprintf(a.out, "%s  %s  %s\n", s.ID, s.Name, s.Address)
	}
	return nil
}

type named struct {
	ID   string
	Name string
}

func (a *app) listCategories(ctx context.Context) ([]named, error) {
	items, err := a.svc.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]named, 0, len(items))
	for _, c := range items {
		out = append(out, named{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

func (a *app) listBrands(ctx context.Context) ([]named, error) {
	items, err := a.svc.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]named, 0, len(items))
	for _, b := range items {
		out = append(out, named{ID: b.ID, Name: b.Name})
	}
	return out, nil
}

type catalogOps struct {
	list   func(ctx context.Context) ([]named, error)
	create func(ctx context.Context, name string) error
	rename func(ctx context.Context, id, name string) error
	remove func(ctx context.Context, id string) error
}

// catalogCommand builds the list/add/rename/delete command tree shared by
// categories and brands.
func (a *app) catalogCommand(name string, ops catalogOps) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: "List " + name + "; managers and admins can change them",
		Action: a.action(func(ctx context.Context, _ *cli.Command) error {
			items, err := ops.list(ctx)
			if err != nil {
				return err
			}
			for _, it := range items {
				fmt.Fprintf(a.out, "%s  %s\n", it.ID, it.Name)
			}
			return nil
		}),
		Commands: []*cli.Command{
			{
				Name:      "add",
				ArgsUsage: "<name>",
				Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
					if err := ops.create(ctx, strings.Join(cmd.Args().Slice(), " ")); err != nil {
						return err
					}
					fmt.Fprintln(a.out, "Created")
					return nil
				}),
			},
			{
				Name:      "rename",
				ArgsUsage: "<id> <name>",
				Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, 0, "id")
					if err != nil {
						return err
					}
					if err := ops.rename(ctx, id, strings.Join(cmd.Args().Slice()[1:], " ")); err != nil {
						return err
					}
					fmt.Fprintln(a.out, "Renamed")
					return nil
				}),
			},
			{
				Name:      "delete",
				ArgsUsage: "<id>",
				Action: a.action(func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, 0, "id")
					if err != nil {
						return err
					}
					if err := ops.remove(ctx, id); err != nil {
						return err
					}
					fmt.Fprintln(a.out, "Deleted")
					return nil
				}),
			},
		},
	}
}
