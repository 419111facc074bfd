package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gymii/dashboard/internal/client"
	"github.com/gymii/dashboard/internal/cost"
	"github.com/gymii/dashboard/internal/paging"
	"github.com/gymii/dashboard/internal/render"
	"github.com/gymii/dashboard/internal/retention"
)

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password; read from stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errUsage
	}

	if *password == "" {
		fmt.Fprint(a.stderr, "Password: ")
		line, err := bufio.NewReader(a.stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	sess, err := a.store.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	a.print(fmt.Sprintf("Signed in as %s (%s)", sess.User.Email, sess.User.Role))
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.store.Logout(ctx); err != nil {
		return err
	}
	a.api.InvalidateAll()
	a.print("Signed out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	sess, err := a.store.Current()
	if err != nil {
		return err
	}
	me, err := a.api.Client().Me(ctx)
	if err != nil {
		return err
	}
	a.print(render.Title(sess.User.Name) + "\n" + me.Email + "\n" + render.Help(me.Message))
	return nil
}

func cmdKPI(ctx context.Context, a *app, _ []string) error {
	k, err := a.api.KPI(ctx)
	if err != nil {
		return err
	}
	a.print(render.Dashboard(k))
	return nil
}

func cmdRefresh(ctx context.Context, a *app, _ []string) error {
	res, err := a.api.Refresh(ctx)
	if err != nil {
		return err
	}
	a.print(render.RefreshResult(res))
	return nil
}

func cmdUsers(ctx context.Context, a *app, args []string) error {
	fs := a.flags("users")
	q := fs.String("q", "", "search term matched against id, name and email")
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", paging.DefaultPageSize, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.api.SearchUsers(ctx, *q, *page, *size)
	if err != nil {
		return err
	}
	a.print(render.Users(res))
	return nil
}

func cmdUser(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	u, err := a.api.User(ctx, args[0])
	if err != nil {
		return err
	}
	comments, err := a.api.Comments(ctx, args[0])
	if err != nil {
		return err
	}
	a.print(render.UserDetail(u) + "\n\n" + render.Title("Comments") + "\n" + render.Comments(comments))
	return nil
}

func cmdSessions(ctx context.Context, a *app, args []string) error {
	fs := a.flags("sessions")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	res, err := a.api.Sessions(ctx, fs.Arg(0), *page)
	if err != nil {
		return err
	}
	a.print(render.Sessions(res))
	return nil
}

func cmdComments(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch sub, rest := args[0], args[1:]; sub {
	case "list", "ls":
		if len(rest) != 1 {
			return errUsage
		}
		list, err := a.api.Comments(ctx, rest[0])
		if err != nil {
			return err
		}
		a.print(render.Comments(list))

	case "add":
		fs := a.flags("comments add")
		mood := fs.String("mood", "", "optional mood")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() < 2 {
			return errUsage
		}
		var moodArg *string
		if *mood != "" {
			moodArg = mood
		}
		c, err := a.api.CreateComment(ctx, fs.Arg(0), strings.Join(fs.Args()[1:], " "), moodArg)
		if err != nil {
			return err
		}
		a.print(fmt.Sprintf("Added comment %d", c.ID))

	case "edit":
		fs := a.flags("comments edit")
		text := fs.String("text", "", "new text")
		mood := fs.String("mood", "", "new mood")
		clearMood := fs.Bool("clear-mood", false, "remove the mood")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 2 {
			return errUsage
		}
		id, err := parseCommentID(fs.Arg(0))
		if err != nil {
			return err
		}

		upd := client.CommentUpdate{ClearMood: *clearMood}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "text":
				upd.Text = text
			case "mood":
				upd.Mood = mood
			}
		})
		c, err := a.api.UpdateComment(ctx, fs.Arg(1), id, upd)
		if err != nil {
			return err
		}
		a.print(fmt.Sprintf("Updated comment %d", c.ID))

	case "rm", "delete":
		if len(rest) != 2 {
			return errUsage
		}
		id, err := parseCommentID(rest[0])
		if err != nil {
			return err
		}
		if err := a.api.DeleteComment(ctx, rest[1], id); err != nil {
			return err
		}
		a.print(fmt.Sprintf("Deleted comment %d", id))

	default:
		return errUsage
	}
	return nil
}

func parseCommentID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid comment id %q", s)
	}
	return id, nil
}

func cmdRetention(ctx context.Context, a *app, args []string) error {
	fs := a.flags("retention")
	raw := fs.String("period", string(retention.PeriodDay1), "d1, d7 or d14")
	if err := fs.Parse(args); err != nil {
		return err
	}
	period, err := retention.ParsePeriod(*raw)
	if err != nil {
		return err
	}

	rows, err := a.api.Retention(ctx, period)
	if err != nil {
		return err
	}
	a.print(render.Retention(rows, period))
	return nil
}

func cmdCohorts(ctx context.Context, a *app, args []string) error {
	fs := a.flags("cohorts")
	view := fs.String("view", string(retention.ViewDaily), "daily, weekly or monthly")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v := retention.View(*view)
	if v != retention.ViewDaily && v != retention.ViewWeekly && v != retention.ViewMonthly {
		return fmt.Errorf("unknown cohort view %q", *view)
	}

	report, err := a.api.Cohorts(ctx)
	if err != nil {
		return err
	}
	a.print(render.Cohorts(report, v))
	return nil
}

func cmdCost(ctx context.Context, a *app, args []string) error {
	fs := a.flags("cost")
	remote := fs.Bool("remote", false, "price the export on the server")
	watch := fs.Bool("watch", false, "re-render whenever the file changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	path := fs.Arg(0)

	if *remote {
		if err := a.online(); err != nil {
			return err
		}
	}

	show := func() error {
		out, err := a.costReport(ctx, path, *remote)
		if err != nil {
			return err
		}
		a.print(out)
		return nil
	}

	if !*watch {
		return show()
	}
	return watchFile(ctx, a.logger, path, func() {
		if err := show(); err != nil {
			a.report(ctx, "Cost report", err)
		}
	})
}

func (a *app) costReport(ctx context.Context, path string, remote bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if remote {
		res, err := a.api.Client().CostReport(ctx, f)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Message != "" {
				return "", fmt.Errorf("%w: %s", err, apiErr.Message)
			}
			return "", err
		}
		return render.CostReport(res.Usage, res.Costs), nil
	}

	rows, err := cost.Parse(f)
	if err != nil {
		var perr *cost.ParseError
		if errors.As(err, &perr) {
			return "", err
		}
		return "", fmt.Errorf("error parsing CSV file: %w", err)
	}
	usage := cost.Aggregate(rows)
	costs, err := usage.Costs(cost.DefaultPrices())
	if err != nil {
		return "", err
	}
	return render.CostReport(usage, costs), nil
}
