package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"classbook/internal/apperr"
	"classbook/internal/booking"
	"classbook/internal/catalog"
	"classbook/internal/export"
	"classbook/internal/models"
	"classbook/internal/reservations"
)

const whenLayout = "2006-01-02 15:04"

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseWhen reads whenLayout in loc.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(whenLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, apperr.Validation("parse time", fmt.Errorf("%q is not %s", s, whenLayout))
	}
	return t, nil
}

// parseCapacity requires a whole number of seats.
func parseCapacity(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperr.Validation("parse capacity", models.ErrClassroomCapacity)
	}
	return n, nil
}

func runStatus(ctx context.Context, a *app, _ []string) error {
	if err := a.client.HealthCheck(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "server %s is up\n", a.cfg.Client.BaseURL)
	me, err := a.session.RequireIdentity()
	if err != nil {
		return err
	}
	loadErr := a.loadAll(ctx)
	future, past := a.bookings.Split(time.Now())
	fmt.Fprintf(a.out, "%s <%s> (%s)\n", me.Name, me.Email, me.Role)
	fmt.Fprintf(a.out, "classrooms: %d, upcoming reservations: %d, past: %d\n",
		len(a.catalog.Items()), len(future), len(past))
	return loadErr
}

func runSignIn(ctx context.Context, a *app, args []string) error {
	fs := newFlags("signin")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("CLASSBOOK_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	me, err := a.session.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s\n", me.Name)
	return nil
}

func runSignUp(ctx context.Context, a *app, args []string) error {
	fs := newFlags("signup")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("CLASSBOOK_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	me, err := a.session.SignUp(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "account created, signed in as %s (%s)\n", me.Name, me.Role)
	return nil
}

func runSignOut(ctx context.Context, a *app, _ []string) error {
	if err := a.session.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func runWhoAmI(_ context.Context, a *app, _ []string) error {
	me, err := a.session.RequireIdentity()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n", me.ID, me.Name, me.Email, me.Role)
	return nil
}

func runProfile(ctx context.Context, a *app, args []string) error {
	me, err := a.session.RequireIdentity()
	if err != nil {
		return err
	}
	fs := newFlags("profile")
	name := fs.String("name", me.Name, "new display name")
	email := fs.String("email", me.Email, "new email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	updated, err := a.session.UpdateProfile(ctx, *name, *email)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "profile updated: %s <%s>\n", updated.Name, updated.Email)
	return nil
}

func runRooms(ctx context.Context, a *app, args []string) error {
	fs := newFlags("rooms")
	query := fs.String("q", "", "name contains (case-insensitive)")
	minCapacity := fs.String("min-capacity", "", "minimum capacity")
	equipment := fs.String("equipment", "", "comma-separated required equipment")
	order := fs.String("sort", string(catalog.SortNameAsc), "sort order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.catalog.Refresh(ctx); err != nil {
		return err
	}

	criteria := catalog.Criteria{Query: *query, MinCapacity: *minCapacity}
	for _, item := range splitList(*equipment) {
		criteria.ToggleEquipment(item)
	}
	rooms := a.catalog.View(criteria, catalog.ParseSortOrder(*order))

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCAPACITY\tEQUIPMENT")
	for _, r := range rooms {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Name, r.Capacity, strings.Join(r.Equipment, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if opts := a.catalog.Equipment(); len(opts) > 0 {
		fmt.Fprintf(a.out, "\nequipment: %s\n", strings.Join(opts, ", "))
	}
	return nil
}

func runRoom(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return apperr.Validation("room", errors.New("exactly one classroom id is required"))
	}
	detail := booking.NewDetail(a.client, a.session, &a.logger, a.bus)
	if err := detail.Load(ctx, args[0]); err != nil {
		return err
	}
	room, _ := detail.Classroom()
	fmt.Fprintf(a.out, "%s (capacity %d)\n", room.Name, room.Capacity)
	if len(room.Equipment) > 0 {
		fmt.Fprintf(a.out, "equipment: %s\n", strings.Join(room.Equipment, ", "))
	}
	list := detail.Reservations()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "no reservations")
		return nil
	}
	return a.printReservations(list)
}

func runCreateRoom(ctx context.Context, a *app, args []string) error {
	fs := newFlags("create-room")
	name := fs.String("name", "", "classroom name")
	capacityFlag := fs.String("capacity", "", "seats")
	equipment := fs.String("equipment", "", "comma-separated equipment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	capacity, err := parseCapacity(*capacityFlag)
	if err != nil {
		return err
	}
	room, err := a.catalog.Create(ctx, models.NewClassroom{
		Name:      *name,
		Capacity:  capacity,
		Equipment: splitList(*equipment),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s (%s)\n", room.Name, room.ID)
	return nil
}

func runBook(ctx context.Context, a *app, args []string) error {
	fs := newFlags("book")
	roomID := fs.String("room", "", "classroom id")
	startFlag := fs.String("start", "", "start, "+whenLayout)
	endFlag := fs.String("end", "", "end, "+whenLayout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.session.RequireIdentity(); err != nil {
		return err
	}
	start, err := parseWhen(*startFlag, a.loc)
	if err != nil {
		return err
	}
	end, err := parseWhen(*endFlag, a.loc)
	if err != nil {
		return err
	}

	detail := booking.NewDetail(a.client, a.session, &a.logger, a.bus)
	if err := detail.Load(ctx, *roomID); err != nil {
		return err
	}
	draft, ok := detail.NewBooking(a.client, a.loc)
	if !ok {
		return apperr.New(apperr.KindNotFound, "book", fmt.Errorf("classroom %q", *roomID))
	}
	if err := pick(draft, booking.FieldStart, start); err != nil {
		return err
	}
	if err := pick(draft, booking.FieldEnd, end); err != nil {
		return err
	}

	res, err := draft.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "booked %s %s - %s (%s)\n", res.Classroom.Name,
		res.StartTime.In(a.loc).Format(whenLayout), res.EndTime.In(a.loc).Format(whenLayout), res.ID)
	return nil
}

// pick walks one field through its date and time pickers.
func pick(m *booking.Machine, field booking.Field, at time.Time) error {
	if err := m.Open(field); err != nil {
		return err
	}
	if err := m.ConfirmDate(at); err != nil {
		return err
	}
	return m.ConfirmTime(at.Hour(), at.Minute())
}

func runReservations(ctx context.Context, a *app, _ []string) error {
	if err := a.bookings.Fetch(ctx); err != nil {
		return err
	}
	future, past := a.bookings.Split(time.Now())
	fmt.Fprintln(a.out, "Upcoming")
	if err := a.printReservations(future); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "\nPast")
	return a.printReservations(past)
}

func runCancel(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return apperr.Validation("cancel", errors.New("at least one reservation id is required"))
	}
	var errs []error
	for _, id := range args {
		outcome := a.bookings.Cancel(ctx, id)
		switch outcome.Status {
		case reservations.Committed:
			fmt.Fprintf(a.out, "cancelled %s\n", id)
		case reservations.Pending:
			fmt.Fprintf(a.out, "%s already being cancelled\n", id)
		default:
			errs = append(errs, fmt.Errorf("cancel %s: %w", id, outcome.Err))
		}
	}
	return errors.Join(errs...)
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := newFlags("export")
	path := fs.String("out", "reservations.xlsx", "output workbook")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.bookings.Fetch(ctx); err != nil {
		return err
	}
	future, past := a.bookings.Split(time.Now())

	f, err := os.Create(*path)
	if err != nil {
		return err
	}
	if err := export.Reservations(f, future, past, a.loc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %d upcoming and %d past reservations to %s\n", len(future), len(past), *path)
	return nil
}

func (a *app) printReservations(list []models.Reservation) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLASSROOM\tSTART\tEND\tBOOKED BY")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Classroom.Name,
			r.StartTime.In(a.loc).Format(whenLayout), r.EndTime.In(a.loc).Format(whenLayout), r.User.Name)
	}
	return tw.Flush()
}
