package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BearBump/TrackDesk/internal/apperr"
	"github.com/BearBump/TrackDesk/internal/auth"
	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/trackview"
	"github.com/pkg/errors"
)

const readyTimeout = 10 * time.Second

type userStore interface {
	GetUserByEmail(ctx context.Context, email string) (*identity.User, string, error)
	SetRole(ctx context.Context, userID, role string) (*identity.Profile, error)
}

type trackingAdmin interface {
	List(ctx context.Context) ([]*models.Tracking, error)
	GetByID(ctx context.Context, id uint64) (*models.Tracking, error)
	Delete(ctx context.Context, id uint64) (string, error)
}

type cli struct {
	provider     identity.Provider
	users        userStore
	profiles     identity.ProfileSource
	events       identity.Bus
	trackings    trackingAdmin
	tokens       auth.TokenStorage
	privilegedID string

	out io.Writer
	in  io.Reader
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "bootstrap-admin":
		return c.bootstrapAdmin(ctx, args)
	case "set-role":
		return c.setRole(ctx, args)
	case "login":
		return c.login(ctx, args)
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami(ctx)
	case "list":
		return c.list(ctx)
	case "delete":
		return c.delete(ctx, args)
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func (c *cli) bootstrapAdmin(ctx context.Context, args []string) error {
	fs := c.flags("bootstrap-admin")
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := c.provider.SignUp(ctx, *email, *password)
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		u, err = c.lookup(ctx, *email)
		if err != nil {
			return err
		}
	case err != nil:
		return describe(err)
	}
	return c.assignRole(ctx, u, identity.RoleAdmin)
}

func (c *cli) setRole(ctx context.Context, args []string) error {
	fs := c.flags("set-role")
	email := fs.String("email", "", "user email")
	role := fs.String("role", "", "new role, e.g. admin or user")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*role) == "" {
		return errors.New("-role is required")
	}
	u, err := c.lookup(ctx, *email)
	if err != nil {
		return err
	}
	return c.assignRole(ctx, u, strings.TrimSpace(*role))
}

func (c *cli) lookup(ctx context.Context, email string) (*identity.User, error) {
	u, _, err := c.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, errors.Wrapf(err, "find user %s", email)
	}
	return u, nil
}

// assignRole announces USER_UPDATED so live gates refetch the profile.
func (c *cli) assignRole(ctx context.Context, u *identity.User, role string) error {
	p, err := c.users.SetRole(ctx, u.ID, role)
	if err != nil {
		return errors.Wrap(err, "set role")
	}
	if err := c.events.Publish(ctx, identity.Event{Tag: identity.EventUserUpdated, UserID: u.ID, At: time.Now().UTC()}); err != nil {
		return errors.Wrap(err, "announce role change")
	}
	fmt.Fprintf(c.out, "%s (%s) role=%s\n", u.Email, u.ID, p.Role)
	return nil
}

func (c *cli) gate(ctx context.Context) (*auth.Gate, auth.State, error) {
	g := auth.NewGate(c.provider, c.profiles, c.tokens, c.privilegedID)
	g.Initialize(ctx)
	wctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	st, err := g.WaitReady(wctx)
	if err != nil {
		g.Dispose()
		return nil, st, errors.Wrap(err, "auth state")
	}
	return g, st, nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, _, err := c.gate(ctx)
	if err != nil {
		return err
	}
	defer g.Dispose()

	if err := g.SignIn(ctx, *email, *password); err != nil {
		return describe(err)
	}
	c.printSession(g.Snapshot())
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	g, _, err := c.gate(ctx)
	if err != nil {
		return err
	}
	defer g.Dispose()
	g.SignOut(ctx)
	fmt.Fprintln(c.out, "signed out")
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	g, st, err := c.gate(ctx)
	if err != nil {
		return err
	}
	defer g.Dispose()
	c.printSession(st)
	return nil
}

func (c *cli) printSession(st auth.State) {
	if !st.SignedIn() {
		fmt.Fprintln(c.out, "not signed in")
		return
	}
	role := "-"
	if st.Profile != nil {
		role = st.Profile.Role
	}
	fmt.Fprintf(c.out, "%s (%s) role=%s admin=%t\n", st.User.Email, st.User.ID, role, st.IsAdmin)
}

// requireAdmin runs the same guard the web console uses.
func (c *cli) requireAdmin(ctx context.Context) (*auth.Gate, error) {
	g, st, err := c.gate(ctx)
	if err != nil {
		return nil, err
	}
	v := auth.Guard{PrivilegedID: c.privilegedID}.Check(st, true, auth.AdminPath)
	switch v.Decision {
	case auth.Render:
		return g, nil
	case auth.RedirectLogin:
		err = errors.New("not signed in, run: track-admin login")
	case auth.RedirectHome:
		err = errors.New("not permitted: admin role required")
	default:
		err = errors.New("auth state is still loading")
	}
	g.Dispose()
	return nil, err
}

func (c *cli) list(ctx context.Context) error {
	g, err := c.requireAdmin(ctx)
	if err != nil {
		return err
	}
	defer g.Dispose()

	ts, err := c.trackings.List(ctx)
	if err != nil {
		return describe(err)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tSTATUS\tLOCATION\tDELIVERY")
	now := time.Now()
	for _, t := range ts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.TrackingCode, t.Status, t.CurrentLocation,
			trackview.DeliveryMessage(t.DeliveryDate, now, t.Status))
	}
	return tw.Flush()
}

func (c *cli) delete(ctx context.Context, args []string) error {
	fs := c.flags("delete")
	id := fs.Uint64("id", 0, "tracking record id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := c.requireAdmin(ctx)
	if err != nil {
		return err
	}
	defer g.Dispose()

	t, err := c.trackings.GetByID(ctx, *id)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(c.out, "This permanently deletes %s. Type the tracking code to confirm: ", t.TrackingCode)
	answer, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "read confirmation")
	}
	if strings.TrimSpace(answer) != t.TrackingCode {
		return errors.New("confirmation did not match, nothing deleted")
	}

	code, err := c.trackings.Delete(ctx, *id)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(c.out, "deleted %s\n", code)
	return nil
}

// describe flattens an apperr into a one-line message with its field problems.
func describe(err error) error {
	e := apperr.As(err)
	if e.Kind == apperr.KindAuth {
		return errors.New(e.Message)
	}
	if len(e.Fields) == 0 {
		return err
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	sort.Strings(parts)
	return errors.Errorf("%s (%s)", e.Message, strings.Join(parts, "; "))
}
